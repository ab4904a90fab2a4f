// Command tagctl inspects the wallet tag namespace and the remote
// configuration it maps to.
//
//	tagctl resolve blockchain.app.configuration.remote.stale
//	tagctl keys blockchain.app.configuration.asset.is.enabled blockchain.app.configuration.asset.id=BTC
//	tagctl get -c configs/local.json blockchain.app.configuration.tabs
//	tagctl override set blockchain.app.configuration.apple.pay.is.enabled true
//	tagctl serve -c configs/local.json
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information
const (
	Version = "0.1.0"
	appName = "tagctl"
)

type rootOptions struct {
	configs   []string
	logLevel  string
	logFormat string
	schema    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Inspect tag references and their remote configuration",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringSliceVarP(&opts.configs, "config", "c", nil, "configuration layer, repeatable (later wins)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: json, text")
	flags.StringVar(&opts.schema, "schema", "", "tag graph document, bundled namespace when empty")

	root.AddCommand(
		newResolveCmd(opts),
		newKeysCmd(opts),
		newGetCmd(opts),
		newOverrideCmd(opts),
		newServeCmd(opts),
	)
	return root
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DensusHere/mywallet-sub001/metric"
	"github.com/DensusHere/mywallet-sub001/remoteconfig"
	"github.com/DensusHere/mywallet-sub001/tag"
)

// tagInfo is the resolve output.
type tagInfo struct {
	ID         string   `json:"id"`
	Requested  string   `json:"requested,omitempty"`
	Name       string   `json:"name"`
	Parent     string   `json:"parent,omitempty"`
	Type       []string `json:"type"`
	Children   []string `json:"children"`
	Collection bool     `json:"collection"`
	Leaf       bool     `json:"leaf"`
}

func describe(t *tag.Tag, requested string) tagInfo {
	info := tagInfo{
		ID:         t.ID(),
		Name:       t.Name(),
		Children:   t.ChildNames(),
		Collection: t.IsCollection(),
		Leaf:       t.IsLeaf(),
	}
	if requested != t.ID() {
		info.Requested = requested
	}
	if parent, ok := t.ParentID(); ok {
		info.Parent = parent
	}
	for id := range t.Type() {
		info.Type = append(info.Type, id)
	}
	sort.Strings(info.Type)
	return info
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a tag id to its canonical tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			t, err := a.lang.Tag(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), describe(t, args[0]))
		},
	}
}

func newKeysCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys <id> [binding=value...]",
		Short: "List the remote configuration keys tried for a reference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ref, err := reference(a.lang, args[0], args[1:])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "# %s\n", ref.String())
			for _, c := range remoteconfig.Candidates(ref) {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", c.Kind, c.Key)
			}
			return w.Flush()
		},
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var (
		wait  time.Duration
		token string
	)
	cmd := &cobra.Command{
		Use:   "get <id> [binding=value...]",
		Short: "Read the configured value of a reference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ref, err := reference(a.lang, args[0], args[1:])
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.openSession(ctx); err != nil {
				return err
			}
			if err := a.session.Start(ctx); err != nil {
				return err
			}
			if token != "" {
				if err := a.session.SignIn(ctx, token); err != nil {
					return err
				}
			}
			if err := a.waitSynchronized(ctx, wait); err != nil {
				return err
			}

			r := a.session.Config(ref)
			if !r.OK() {
				return r.Err
			}
			return writeJSON(cmd.OutOrStdout(), r.Value)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the remote configuration")
	cmd.Flags().StringVar(&token, "token", "", "bearer token used to fetch experiment assignments")
	return cmd
}

func newOverrideCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage local overrides",
	}

	setCmd := &cobra.Command{
		Use:   "set <id> <json-value> [binding=value...]",
		Short: "Override the value of a reference",
		Long:  "Override the value of a reference. A value that is not valid JSON is stored as a string.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOverlay(cmd, opts, args[0], args[2:], func(o *remoteconfig.Overlay, ref tag.Reference) error {
				var value any
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					value = args[1]
				}
				if err := o.Override(cmd.Context(), ref, value); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", remoteconfig.OverrideKey(ref), args[1])
				return err
			})
		},
	}

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear [<id> binding=value...]",
		Short: "Remove the override of a reference, or every override with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return withOverlay(cmd, opts, "", nil, func(o *remoteconfig.Overlay, _ tag.Reference) error {
					return o.ClearOverrides(cmd.Context())
				})
			}
			if len(args) == 0 {
				return fmt.Errorf("clear needs a tag id or --all")
			}
			return withOverlay(cmd, opts, args[0], args[1:], func(o *remoteconfig.Overlay, ref tag.Reference) error {
				return o.ClearOverride(cmd.Context(), ref)
			})
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "remove every override")

	cmd.AddCommand(setCmd, clearCmd)
	return cmd
}

// withOverlay runs fn against an overlay that is not started; override
// writes go straight to the override store.
func withOverlay(cmd *cobra.Command, opts *rootOptions, id string, bindings []string,
	fn func(*remoteconfig.Overlay, tag.Reference) error) error {

	a, err := newApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	var ref tag.Reference
	if id != "" {
		if ref, err = reference(a.lang, id, bindings); err != nil {
			return err
		}
	}
	defer a.close()
	if err := a.openSession(cmd.Context()); err != nil {
		return err
	}
	return fn(a.session.Overlay(), ref)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Keep the remote configuration synchronized and serve metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cmd.ErrOrStderr())
		},
	}
}

func serve(ctx context.Context, opts *rootOptions, logs io.Writer) error {
	a, err := newApp(opts, logs)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.openSession(ctx); err != nil {
		return err
	}
	if err := a.session.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Metrics.Addr; addr != "" {
		server := metric.NewServer(addr, a.cfg.Metrics.Path, a.metrics)
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			return server.Stop()
		})
		a.logger.Info("metrics server starting", "addr", addr, "path", a.cfg.Metrics.Path)
	}

	overlay := a.session.Overlay()
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case u := <-overlay.OnChange():
				a.logger.Info("configuration changed",
					"origin", u.Origin,
					"revision", u.Revision,
					"overrides", len(overlay.Overrides()))
			}
		}
	})

	a.logger.Info("serving", "source", a.cfg.RemoteConfig.Source)
	err = g.Wait()
	a.logger.Info("shutting down")
	return err
}

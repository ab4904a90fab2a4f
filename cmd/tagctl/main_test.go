package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/tag/schema"
)

// run executes the root command and returns stdout. Logs are discarded.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// fileConfig writes a remote configuration document and a config layer
// pointing the file source at it.
func fileConfig(t *testing.T, remote map[string]any) string {
	t.Helper()
	dir := t.TempDir()

	doc, err := json.Marshal(remote)
	require.NoError(t, err)
	remotePath := filepath.Join(dir, "remote.json")
	require.NoError(t, os.WriteFile(remotePath, doc, 0o644))

	layer, err := json.Marshal(map[string]any{
		"log":           map[string]any{"level": "error"},
		"remote_config": map[string]any{"source": "file", "file": remotePath},
	})
	require.NoError(t, err)
	layerPath := filepath.Join(dir, "tagctl.json")
	require.NoError(t, os.WriteFile(layerPath, layer, 0o644))
	return layerPath
}

func TestParseBindings(t *testing.T) {
	lang, err := schema.BlockchainLanguage()
	require.NoError(t, err)

	ctx, err := parseBindings(lang, []string{"blockchain.app.configuration.asset.id=BTC"})
	require.NoError(t, err)
	v, ok := ctx.Get(lang.MustTag("blockchain.app.configuration.asset.id"))
	require.True(t, ok)
	assert.Equal(t, "BTC", v)

	_, err = parseBindings(lang, []string{"BTC"})
	assert.True(t, errors.IsInvalid(err))

	_, err = parseBindings(lang, []string{"blockchain.nope=1"})
	assert.ErrorIs(t, err, errors.ErrNotInLanguage)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, appName, entry["service"])
	assert.Equal(t, "v", entry["k"])

	buf.Reset()
	setupLogger(&buf, "debug", "text").Debug("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestResolveCommand(t *testing.T) {
	out, err := run(t, "resolve", "blockchain.app.configuration.apple.pay.is.enabled")
	require.NoError(t, err)

	var info tagInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "blockchain.app.configuration.apple.pay.is.enabled", info.ID)
	assert.Equal(t, "enabled", info.Name)
	assert.Equal(t, "blockchain.app.configuration.apple.pay.is", info.Parent)
	assert.True(t, info.Leaf)
	assert.Empty(t, info.Requested)

	_, err = run(t, "resolve", "blockchain.nope")
	assert.ErrorIs(t, err, errors.ErrNotInLanguage)
}

func TestKeysCommand(t *testing.T) {
	out, err := run(t, "keys", "blockchain.app.configuration.asset.is.enabled",
		"blockchain.app.configuration.asset.id=BTC")
	require.NoError(t, err)

	assert.Contains(t, out, "# blockchain.app.configuration.asset[BTC].is.enabled")
	assert.Contains(t, out, "override")
	assert.Contains(t, out, "!blockchain_app_configuration_asset[BTC]_is_enabled")
	assert.Contains(t, out, "ios_ff_asset[BTC]_enabled")
	assert.Contains(t, out, "blockchain_app_configuration_asset_is_enabled")

	_, err = run(t, "keys")
	assert.Error(t, err)
}

func TestGetCommand_FileSource(t *testing.T) {
	remote := map[string]any{}
	remote["ios_ff_apple_pay_is_enabled"] = true
	remote["blockchain_app_configuration_asset[BTC]_is_enabled"] = false
	layer := fileConfig(t, remote)

	out, err := run(t, "--config", layer, "get", "blockchain.app.configuration.apple.pay.is.enabled", "--wait", "2s")
	require.NoError(t, err)
	assert.Equal(t, "true", strings.TrimSpace(out))

	out, err = run(t, "--config", layer, "get", "blockchain.app.configuration.asset.is.enabled",
		"blockchain.app.configuration.asset.id=BTC", "--wait", "2s")
	require.NoError(t, err)
	assert.Equal(t, "false", strings.TrimSpace(out))

	_, err = run(t, "--config", layer, "get", "blockchain.user.name", "--wait", "2s")
	assert.ErrorIs(t, err, errors.ErrKeyDoesNotExist)
}

func TestOverrideCommand_FileSource(t *testing.T) {
	layer := fileConfig(t, map[string]any{})

	out, err := run(t, "--config", layer, "override", "set", "blockchain.user.name", "satoshi")
	require.NoError(t, err)
	assert.Equal(t, "!blockchain_user_name = satoshi\n", out)

	_, err = run(t, "--config", layer, "override", "clear", "--all")
	require.NoError(t, err)

	_, err = run(t, "--config", layer, "override", "clear")
	assert.Error(t, err)
}

func TestLoadConfig_FlagsOverrideLayers(t *testing.T) {
	layer := fileConfig(t, map[string]any{})
	cfg, err := loadConfig(&rootOptions{configs: []string{layer}, logLevel: "debug", logFormat: "text"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	_, err = loadConfig(&rootOptions{configs: []string{layer}, logLevel: "loud"})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

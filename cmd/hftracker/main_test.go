package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootFlags(t *testing.T) {
	root := newRootCmd()
	f := root.PersistentFlags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, "config.json", f.DefValue)
	require.NotNil(t, root.Flags().Lookup("once"))
}

func TestStateCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("hf_users: [acme]\nstate_file: "+filepath.ToSlash(filepath.Join(dir, "s.json"))+"\n"), 0o600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"state", "--config", cfg})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "no tracked accounts")
}

func TestMissingConfigIsAnError(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"--once", "--config", filepath.Join(t.TempDir(), "nope.json")})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

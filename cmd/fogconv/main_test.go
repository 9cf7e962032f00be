package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	return rootCmd.Execute()
}

func TestSubcommandsCheckArgs(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")
	for _, args := range [][]string{
		{"reset"},
		{"stat", "a", "b"},
		{"export", "hall"},
		{"import", "hall"},
	} {
		err := execute(t, append(args, "--config", missing)...)
		require.Error(t, err, "%v", args)
		assert.Contains(t, err.Error(), "arg(s)", "%v", args)
	}
}

func TestMissingConfigStopsBeforeDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")
	err := execute(t, "stat", "hall", "--config", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
	assert.Contains(t, err.Error(), missing)
}

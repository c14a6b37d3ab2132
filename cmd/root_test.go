package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3mirror/config"
	"s3mirror/internal/location"
)

func runCommand(t *testing.T, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), cfg, args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestHelpExitsZero(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		t.Run(arg, func(t *testing.T) {
			_, stderr, err := runCommand(t, &config.Config{}, arg)
			require.NoError(t, err)
			assert.Equal(t, 0, ExitCode(err))
			assert.Contains(t, stderr, "Usage:")
			assert.Contains(t, stderr, "--repeatInterval")
		})
	}
}

func TestArgumentErrors(t *testing.T) {
	dest := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{name: "no arguments", args: nil},
		{name: "one argument", args: []string{"s3://bucket/prefix/"}},
		{name: "three arguments", args: []string{"s3://bucket/", dest, "extra"}},
		{name: "unknown flag", args: []string{"--bogus", "s3://bucket/", dest}},
		{name: "access key without secret", args: []string{"--accessKey", "AKIA", "s3://bucket/", dest}},
		{name: "secret without access key", args: []string{"--secretAccessKey", "secret", "s3://bucket/", dest}},
		{name: "zero threads", args: []string{"-t", "0", "s3://bucket/", dest}},
		{name: "negative repeat interval", args: []string{"-r", "-1", "s3://bucket/", dest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := runCommand(t, &config.Config{}, tt.args...)
			require.Error(t, err)

			var argErr *ArgumentError
			assert.True(t, errors.As(err, &argErr))
			assert.Equal(t, 1, ExitCode(err))
			assert.Contains(t, stderr, "Usage:")
		})
	}
}

func TestMalformedLocation(t *testing.T) {
	_, stderr, err := runCommand(t, &config.Config{}, "not-a-location", t.TempDir())
	require.Error(t, err)

	var locErr *location.MalformedLocationError
	assert.True(t, errors.As(err, &locErr))
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, stderr, "not-a-location")
}

func TestUnreadableCredentialsFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.cfg")

	_, stderr, err := runCommand(t, &config.Config{}, "--configFile", missing, "s3://bucket/prefix/", t.TempDir())
	require.Error(t, err)

	var credErr *config.CredentialError
	assert.True(t, errors.As(err, &credErr))
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, stderr, missing)
}

func TestMirrorFromMemoryBucket(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "dest")

	stdout, _, err := runCommand(t, &config.Config{}, "--summary", "-t", "3", "mem://bucket/prefix/", dest)
	require.NoError(t, err)
	assert.Equal(t, 0, ExitCode(err))
	assert.Contains(t, stdout, `"location": "mem://bucket/prefix/"`)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("listing failed")))
	assert.Equal(t, 1, ExitCode(&ArgumentError{Err: errors.New("bad")}))
	assert.Equal(t, 2, ExitCode(&config.CredentialError{Path: "x", Err: os.ErrNotExist}))
}

func TestResolveCredentials(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "creds.cfg")
	require.NoError(t, os.WriteFile(file, []byte("accessKey=file-access\nsecretKey=file-secret\n"), 0o600))
	logger := newLogger(io.Discard, false)

	t.Run("flags win", func(t *testing.T) {
		cfg := &config.Config{AccessKey: "env-access", SecretKey: "env-secret"}
		flags := &mirrorFlags{accessKey: "flag-access", secretKey: "flag-secret", configFile: file}

		require.NoError(t, resolveCredentials(cfg, flags, logger))
		assert.Equal(t, "flag-access", cfg.AccessKey)
		assert.Equal(t, "flag-secret", cfg.SecretKey)
	})

	t.Run("environment before file", func(t *testing.T) {
		cfg := &config.Config{AccessKey: "env-access", SecretKey: "env-secret"}

		require.NoError(t, resolveCredentials(cfg, &mirrorFlags{configFile: file}, logger))
		assert.Equal(t, "env-access", cfg.AccessKey)
		assert.Equal(t, "env-secret", cfg.SecretKey)
	})

	t.Run("file", func(t *testing.T) {
		cfg := &config.Config{}

		require.NoError(t, resolveCredentials(cfg, &mirrorFlags{configFile: file}, logger))
		assert.Equal(t, "file-access", cfg.AccessKey)
		assert.Equal(t, "file-secret", cfg.SecretKey)
	})

	t.Run("incomplete file", func(t *testing.T) {
		partial := filepath.Join(dir, "partial.cfg")
		require.NoError(t, os.WriteFile(partial, []byte("accessKey=only\n"), 0o600))

		err := resolveCredentials(&config.Config{}, &mirrorFlags{configFile: partial}, logger)
		assert.Equal(t, 2, ExitCode(err))
	})
}

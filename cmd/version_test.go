package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	orig := rootCmd.Version
	SetVersion(v)
	t.Cleanup(func() { SetVersion(orig) })
}

func TestNewVersionCmd(t *testing.T) {
	versionCmd := newVersionCmd()

	assert.Equal(t, "version", versionCmd.Use)
	assert.NotEmpty(t, versionCmd.Short)
	assert.Contains(t, versionCmd.Long, "EVAULT_SERVER_URL")
	assert.NotNil(t, versionCmd.Run)
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("EVAULT_SERVER_URL", "")

	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"injected with ldflags", "1.4.0", "evault version 1.4.0\n"},
		{"development build", devVersion, "evault version dev (development build)\n"},
		{"empty", "", "evault version unknown\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withVersion(t, tt.version)

			out, err := execute(t, "version", "--config-path", t.TempDir(), "--server", "https://vault.example.com/")
			require.NoError(t, err)
			assert.Equal(t, tt.want+"Backend:  https://vault.example.com/api/github\n", out)
		})
	}
}

func TestVersionCommand_UnreadableConfig(t *testing.T) {
	withVersion(t, "1.4.0")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644))

	out, err := execute(t, "version", "--config-path", dir)
	require.NoError(t, err)
	assert.Equal(t, "evault version 1.4.0\n", out)
}

func TestVersionFlag(t *testing.T) {
	withVersion(t, "1.4.0")

	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "evault version 1.4.0\n", out)
}

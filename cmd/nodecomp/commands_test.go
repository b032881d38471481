package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nodecomp dev")
}

func TestDriversCommand(t *testing.T) {
	t.Run("built-in catalog", func(t *testing.T) {
		out, err := run(t, "drivers", "--catalog", "")
		require.NoError(t, err)
		assert.Contains(t, out, "plumber: noop")
		assert.Contains(t, out, "name: noop")
	})

	t.Run("catalog file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
plumber: noop
drivers:
  - name: firewall
    type: noop
    capabilities:
      - service_type: FIREWALL
`), 0o600))

		out, err := run(t, "drivers", "--catalog", path)
		require.NoError(t, err)
		assert.Contains(t, out, "name: firewall")
		assert.Contains(t, out, "service_type: FIREWALL")
	})

	t.Run("missing catalog file", func(t *testing.T) {
		_, err := run(t, "drivers", "--catalog", filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

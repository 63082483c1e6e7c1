package solvers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solvers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPreservesRegistrationOrder(t *testing.T) {
	path := writeRegistry(t, `
solvers:
  - name: solver-x
    endpoint: http://solver-x.local/
    account: 4Nd1mYvM8LqkoJFPXnqUY1Yx3TtHwHFD5bZ1M8YVxqJk
    relative_slippage: 0.05
  - name: solver-y
    endpoint: https://solver-y.local
`)

	registry := NewRegistry(zaptest.NewLogger(t))
	loaded, err := registry.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "solver-x", loaded[0].Name)
	assert.Equal(t, "http://solver-x.local", loaded[0].Endpoint, "trailing slash must be trimmed")
	assert.Equal(t, 0.05, loaded[0].RelativeSlippage)
	assert.Equal(t, "solver-y", loaded[1].Name)
	assert.Equal(t, 0.1, loaded[1].RelativeSlippage, "missing slippage falls back to the default")
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	path := writeRegistry(t, `
solvers:
  - name: ""
    endpoint: http://nameless.local
  - name: solver-x
    endpoint: ftp://wrong-scheme.local
  - name: solver-y
    endpoint: http://solver-y.local
  - name: solver-y
    endpoint: http://duplicate.local
`)

	registry := NewRegistry(zaptest.NewLogger(t))
	loaded, err := registry.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "solver-y", loaded[0].Name)
	assert.Equal(t, "http://solver-y.local", loaded[0].Endpoint)
}

func TestLoadFailsWithoutValidSolvers(t *testing.T) {
	registry := NewRegistry(zaptest.NewLogger(t))

	_, err := registry.Load(writeRegistry(t, `solvers: []`))
	assert.Error(t, err)

	_, err = registry.Load(writeRegistry(t, `
solvers:
  - name: solver-x
    endpoint: ftp://wrong.local
`))
	assert.Error(t, err)

	_, err = registry.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

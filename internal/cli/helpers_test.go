package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// labCatalog is the two-case catalog shared with the harness tests.
const labCatalog = "../harness/testdata/catalogs/lab.yaml"

// testEnv is a config file pointing at a fresh database and an in-memory
// activity log.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf("database: %s\nactivity:\n  backend: memory\n", filepath.Join(dir, "lab.db"))
	path := filepath.Join(dir, "crimelab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return testEnv{dir: dir, config: path}
}

// run executes the root command with the env's config and returns stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.config}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

// decodeData unmarshals the data field of a JSON CLI response.
func decodeData[T any](t *testing.T, out string) T {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

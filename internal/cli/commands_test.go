package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colthorp/proximity-cli/internal/api"
	"github.com/colthorp/proximity-cli/internal/core"
	"github.com/colthorp/proximity-cli/internal/proximity"
)

// resetFlags restores every flag to its default, since cobra keeps flag
// state between executions of the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, svc *proximity.Service, stdin string, args ...string) (string, error) {
	t.Helper()
	orig := openService
	openService = func(context.Context) (*proximity.Service, func(), error) {
		return svc, func() {}, nil
	}
	t.Cleanup(func() { openService = orig })
	return execute(stdin, args...)
}

// execute runs the command tree with whichever openService is installed.
func execute(stdin string, args ...string) (string, error) {
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--quiet", "--log-level=error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGeocodeCommand(t *testing.T) {
	svc := newTestService(t, seededTransport())

	out, err := runCLI(t, svc, "", "geocode", "Gdańsk", "Atlantis")
	require.NoError(t, err)
	assert.Contains(t, out, "54.352,18.6466")
	assert.Contains(t, out, "no match")

	out, err = runCLI(t, svc, "", "geocode", "--json", "Gdańsk")
	require.NoError(t, err)
	var got map[string]proximity.GeocodeResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got["Gdańsk"], 1)
}

func TestCenterCommand(t *testing.T) {
	out, err := runCLI(t, newTestService(t, seededTransport()), "", "center")
	require.NoError(t, err)
	assert.Equal(t, "Gdańsk\t54.352,18.6466\n", out)
}

func TestNearbyCommand(t *testing.T) {
	transport := seededTransport()
	svc := newTestService(t, transport)

	out, err := runCLI(t, svc, "", "nearby", "zabka", "--lat", "54.352", "--lng", "18.6466", "--json")
	require.NoError(t, err)
	var places []proximity.PlaceRecord
	require.NoError(t, json.Unmarshal([]byte(out), &places))
	require.Len(t, places, 2)
	assert.Equal(t, "zabka", places[0].Amenity)

	out, err = runCLI(t, svc, "", "nearby", "zabka")
	require.NoError(t, err)
	assert.Contains(t, out, "Żabka Oliwa")
	assert.Equal(t, 1, transport.RequestsTo("place/textsearch/json"), "second run is served from the store")
}

func TestNearbyCommand_LatWithoutLng(t *testing.T) {
	_, err := runCLI(t, newTestService(t, seededTransport()), "", "nearby", "zabka", "--lat", "54.3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--lat and --lng")
}

func TestDistanceCommand(t *testing.T) {
	svc := newTestService(t, seededTransport())

	out, err := runCLI(t, svc, "", "distance", "54.352,18.6466", "Sopot")
	require.NoError(t, err)
	assert.Equal(t, "11800 m (walking)\n", out)

	_, err = runCLI(t, svc, "", "distance", "Gdańsk", "Sopot", "--mode", "teleport")
	assert.Error(t, err)
}

func TestEnrichCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addresses: [Sopot, Atlantis]\namenities: [zabka, lidl]\n"), 0o644))

	out, err := runCLI(t, newTestService(t, seededTransport()), "", "enrich", "--plan", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Żabka Oliwa")
	assert.Contains(t, out, "no places found")
	assert.Contains(t, out, "1 unresolved address(es)")
}

func TestEnrichCommand_RequiresPlan(t *testing.T) {
	_, err := runCLI(t, newTestService(t, seededTransport()), "", "enrich")
	assert.Error(t, err)
}

func TestCacheCommands(t *testing.T) {
	transport := seededTransport()
	svc := newTestService(t, transport)

	_, err := runCLI(t, svc, "", "nearby", "zabka")
	require.NoError(t, err)

	out, err := runCLI(t, svc, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "memory://amenity")
	assert.Contains(t, out, "Places across all amenities: 2")

	_, err = runCLI(t, svc, "", "cache", "reset-amenity", "zabka")
	require.NoError(t, err)
	_, ok := svc.Bucket("zabka")
	assert.False(t, ok)

	// Unknown queries are a no-op.
	_, err = runCLI(t, svc, "", "cache", "reset-amenity", "kebab")
	require.NoError(t, err)
}

func TestMCPCommand(t *testing.T) {
	out, err := runCLI(t, newTestService(t, seededTransport()),
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`+"\n",
		"mcp")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"proximity-cli"`)
}

func TestCacheCommands_WithoutAPIKey(t *testing.T) {
	t.Setenv(core.APIKeyEnvVar, "")
	t.Setenv(core.EnvPrefix+"_PROVIDER_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  driver: memory\n"), 0o644))

	out, err := execute("", "--config", path, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Places across all amenities: 0")

	_, err = execute("", "--config", path, "cache", "reset-amenity", "zabka")
	require.NoError(t, err)

	// Anything that needs the provider reports the missing key.
	_, err = execute("", "--config", path, "geocode", "Gdańsk")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrMissingAPIKey))
}

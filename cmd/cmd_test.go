package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/ledger"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `node:
  actors: [B1, C1]
buildings:
  - name: B1
    production: 10
batteries:
  - name: BAT1
    building: B1
    total_capacity: 50
consumers:
  - name: C1
    building: B1
    provider: P1
    demand: 2
` + extra
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestActorsLs(t *testing.T) {
	path := writeConfig(t, "")
	out := execute(t, "actors", "ls", "-c", path)
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `BAT1\s+BATTERY\s+B1\s+no`, out)
	assert.Regexp(t, `C1\s+CONSUMER\s+B1\s+yes`, out)
}

func TestLedgerQueryAndSummary(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.jsonl")
	path := writeConfig(t, "ledger:\n  backend: jsonl\n  path: "+dbPath+"\n")
	store, err := ledger.NewJSONLStore(dbPath)
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(context.Background(), ledger.LogRecord{
		Timestamp: now, Building: "B1", Period: 1, TotalDemand: 2, Supplied: map[string]float64{"C1": 2},
	}))
	require.NoError(t, store.Close())

	out := execute(t, "ledger", "query", "-c", path, "--building", "B1", "--since", "2024-05-01T00:00:00Z")
	assert.Contains(t, out, `"building":"B1"`)

	out = execute(t, "ledger", "summary", "-c", path, "--building", "B1", "--since", "")
	assert.Contains(t, out, `"periods": 1`)

	out = execute(t, "ledger", "query", "-c", path, "--building", "B1", "--format", "csv")
	assert.Contains(t, out, "2024-05-01T10:00:00Z,B1,1,0,2,C1,2,0,0,0")

	kpiDB := filepath.Join(t.TempDir(), "kpi.db")
	out = execute(t, "ledger", "kpi", "-c", path, "--building", "B1", "--db", kpiDB)
	assert.Contains(t, out, `"date": "2024-05-01"`)
	assert.Contains(t, out, `"self_sufficiency": 1`)
	assert.FileExists(t, kpiDB)
}

func TestParseLedgerQueryRejectsBadTime(t *testing.T) {
	ledgerSince = "yesterday"
	defer func() { ledgerSince = "" }()
	_, err := parseLedgerQuery()
	assert.Error(t, err)
}

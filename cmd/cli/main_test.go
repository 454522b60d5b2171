package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jp-address-parser/app/config"
	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/app/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser(t *testing.T) services.Parser {
	t.Helper()
	p, err := services.BuildPipeline(context.Background(), config.Default(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p.Parser
}

func TestRunParse(t *testing.T) {
	p := newTestParser(t)

	var out bytes.Buffer
	err := runParse(context.Background(), p, []string{"和歌山県西牟婁郡白浜町栄609-2"}, &out)
	require.NoError(t, err)

	var got parseOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.NotNil(t, got.Result)
	assert.Empty(t, got.Error)
	assert.Equal(t, "和歌山県", models.Value(got.Result.Prefecture))
	assert.Equal(t, "西牟婁郡", models.Value(got.Result.County))
}

func TestRunParseFailure(t *testing.T) {
	p := newTestParser(t)

	var out bytes.Buffer
	err := runParse(context.Background(), p, []string{"火星県オリンポス市1-1"}, &out)
	assert.ErrorIs(t, err, errFailedRecords)
	assert.Contains(t, out.String(), `"error"`)
	assert.NotContains(t, out.String(), `"result"`)
}

func TestRunBatch(t *testing.T) {
	p := newTestParser(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(in, []byte("東京都中央区八重洲2-1-1 YANMAR TOKYO 12F\n火星県オリンポス市1-1\n\n大阪府大阪市中央区久太郎町４丁目渡辺３号\n"), 0o644))

	var stderr bytes.Buffer
	bo := &batchOpts{in: in, out: out, workers: 2, null: "-"}
	require.NoError(t, runBatch(context.Background(), p, bo, nil, nil, &stderr, zap.NewNop()))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	status := len(rows[0]) - 2
	assert.Equal(t, "status", rows[0][status])
	assert.Equal(t, "ok", rows[1][status])
	assert.Equal(t, "failed", rows[2][status])
	assert.Equal(t, "火星県オリンポス市1-1", rows[2][0])
	assert.Equal(t, "-", rows[2][3])
	assert.Equal(t, "ok", rows[3][status])

	var summary models.BatchSummary
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Failed)

	bo.strict = true
	stderr.Reset()
	err = runBatch(context.Background(), p, bo, nil, nil, &stderr, zap.NewNop())
	assert.ErrorIs(t, err, errFailedRecords)
}

func TestRunBatchStdio(t *testing.T) {
	p := newTestParser(t)

	var stdout, stderr bytes.Buffer
	bo := &batchOpts{in: "-", out: "-"}
	err := runBatch(context.Background(), p, bo, strings.NewReader("東京都中央区八重洲2-1-1\n"), &stdout, &stderr, zap.NewNop())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "full_address,"))
	assert.True(t, strings.HasPrefix(lines[1], "東京都中央区八重洲2-1-1,"))
}

func TestRunBatchMissingInput(t *testing.T) {
	p := newTestParser(t)
	bo := &batchOpts{in: filepath.Join(t.TempDir(), "missing.csv"), out: "-"}
	err := runBatch(context.Background(), p, bo, nil, nil, nil, zap.NewNop())
	assert.ErrorContains(t, err, "open input")
}

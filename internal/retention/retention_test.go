package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/simreplay/pkg/logfile"
)

var blobSchema = logfile.MustSchema(logfile.Blob("state"))

// writeLog writes a finalized one-frame log holding an n byte blob and
// backdates it by age.
func writeLog(t *testing.T, path string, n int, age time.Duration) {
	t.Helper()
	w, err := logfile.Create(path, blobSchema, logfile.WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.WriteField("state", make([]byte, n)))
	require.NoError(t, w.CommitFrame())
	require.NoError(t, w.Close())
	backdate(t, path, age)
}

func backdate(t *testing.T, path string, age time.Duration) {
	t.Helper()
	ts := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestPrune_RemovesOldestFinalizedLogs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.srlog")
	b := filepath.Join(dir, "b.srlog")
	c := filepath.Join(dir, "c.srlog")
	live := filepath.Join(dir, "live.srlog")

	writeLog(t, a, 10_000, 3*time.Hour)
	writeLog(t, b, 10_000, 2*time.Hour)
	writeLog(t, c, 10_000, time.Hour)

	w, err := logfile.Create(live, blobSchema, logfile.WriterOptions{})
	require.NoError(t, err)
	defer w.Close()
	backdate(t, live, 4*time.Hour)

	rep, err := Prune(context.Background(), Policy{Dir: dir, Limit: datasize.ByteSize(25_000), Keep: c})
	require.NoError(t, err)
	require.Equal(t, []string{a, b}, rep.Removed)
	require.Less(t, rep.After, rep.Before)

	require.NoFileExists(t, a)
	require.NoFileExists(t, b)
	require.FileExists(t, c)
	require.FileExists(t, live)
}

func TestPrune_KeepIsNeverRemoved(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.srlog")
	writeLog(t, old, 10_000, time.Hour)

	rep, err := Prune(context.Background(), Policy{Dir: dir, Limit: datasize.ByteSize(1_000), Keep: old})
	require.NoError(t, err)
	require.Empty(t, rep.Removed)
	require.FileExists(t, old)
}

func TestPrune_UnderLimit(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "a.srlog"), 1_000, time.Hour)

	rep, err := Prune(context.Background(), Policy{Dir: dir, Limit: datasize.MB})
	require.NoError(t, err)
	require.Empty(t, rep.Removed)
	require.Equal(t, rep.Before, rep.After)
}

func TestPrune_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, make([]byte, 5_000), 0o644))

	rep, err := Prune(context.Background(), Policy{Dir: dir, Limit: datasize.ByteSize(100)})
	require.NoError(t, err)
	require.Empty(t, rep.Removed)
	require.FileExists(t, notes)
}

func TestPrune_Disabled(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{name: "zero limit", policy: Policy{Dir: t.TempDir()}},
		{name: "no dir", policy: Policy{Limit: datasize.KB}},
		{name: "missing dir", policy: Policy{Dir: filepath.Join(t.TempDir(), "absent"), Limit: datasize.KB}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := Prune(context.Background(), tt.policy)
			require.NoError(t, err)
			require.Empty(t, rep.Removed)
		})
	}
}

func TestPrune_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "a.srlog"), 10_000, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Prune(ctx, Policy{Dir: dir, Limit: datasize.ByteSize(100)})
	require.ErrorIs(t, err, context.Canceled)
}

package logfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFinalized_ReturnsWhenWriterCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wait.srlog")
	w, err := Create(path, poseSchema(), WriterOptions{FlushEvery: 1})
	require.NoError(t, err)
	writePoseFrame(t, w, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- WaitFinalized(ctx, path, 20*time.Millisecond, nil) }()

	select {
	case err := <-done:
		t.Fatalf("WaitFinalized returned before Close: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, w.Close())
	require.NoError(t, <-done)

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, uint64(1), r.FrameCount())
}

func TestWaitFinalized_FileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.srlog")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- WaitFinalized(ctx, path, 20*time.Millisecond, nil) }()

	time.Sleep(50 * time.Millisecond)
	writePoseLog(t, path, 2, WriterOptions{})
	require.NoError(t, <-done)
}

func TestWaitFinalized_AlreadyFinalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.srlog")
	writePoseLog(t, path, 1, WriterOptions{})

	require.NoError(t, WaitFinalized(context.Background(), path, time.Hour, nil))
}

func TestWaitFinalized_ContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.srlog")
	w, err := Create(path, poseSchema(), WriterOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = WaitFinalized(ctx, path, 20*time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package logfile

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/simreplay/pkg/log"
)

// WaitFinalized blocks until the log at path is finalized by its writer,
// which may live in another process. It watches the containing directory
// and additionally polls every pollInterval, since not every filesystem
// delivers change events.
func WaitFinalized(ctx context.Context, path string, pollInterval time.Duration, logger log.Logger) error {
	logger = log.OrNoop(logger).With(log.Path(path))
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	target := filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ioError("create watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		logger.Warn("cannot watch log directory, polling only", log.Err(err))
	}

	// Checked after the watch is registered so a finalization in between is
	// not missed.
	if done, err := IsFinalized(target); done || (err != nil && !errors.Is(err, ErrFormat)) {
		return err
	}
	logger.Info("waiting for log to be finalized")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				watcher.Events = nil
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				watcher.Errors = nil
				continue
			}
			logger.Warn("watcher error", log.Err(err))
			continue

		case <-ticker.C:
		}

		done, err := IsFinalized(target)
		if errors.Is(err, ErrFormat) {
			// a preamble caught mid-write; the writer rewrites it on close
			logger.Debug("log header not readable yet", log.Err(err))
			continue
		}
		if err != nil {
			return err
		}
		if done {
			logger.Info("log finalized")
			return nil
		}
	}
}

// Package retention keeps a directory of session logs under a size limit by
// removing the oldest finalized logs.
package retention

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/bft-labs/simreplay/pkg/log"
	"github.com/bft-labs/simreplay/pkg/logfile"
)

// LogExt is the extension of session log files.
const LogExt = ".srlog"

// lowWatermark is the fraction of the limit pruning shrinks the directory
// to, so that a prune is not needed again on the next session.
const lowWatermark = 0.75

// Policy bounds a log directory.
type Policy struct {
	Dir   string
	Limit datasize.ByteSize

	// Keep is never removed, typically the log about to be written.
	Keep string

	Logger log.Logger
}

// Report describes what Prune did.
type Report struct {
	Before  int64
	After   int64
	Removed []string
}

type logEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// Prune removes finalized logs from p.Dir, oldest first, when the directory
// holds more than p.Limit bytes, until it is under the low watermark.
// Unfinalized logs may belong to a live writer and are left alone. A zero
// Limit disables pruning.
func Prune(ctx context.Context, p Policy) (Report, error) {
	var rep Report
	if p.Limit == 0 || p.Dir == "" {
		return rep, nil
	}
	logger := log.OrNoop(p.Logger).With(log.String("component", "retention"), log.Path(p.Dir))

	total, logs, err := scan(p.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return rep, nil
		}
		return rep, err
	}
	rep.Before, rep.After = total, total

	high := int64(p.Limit.Bytes())
	if total <= high {
		return rep, nil
	}
	low := int64(float64(high) * lowWatermark)
	keep := filepath.Clean(p.Keep)

	for _, l := range logs {
		if rep.After <= low {
			break
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if l.path == keep {
			continue
		}
		done, err := logfile.IsFinalized(l.path)
		if err != nil || !done {
			logger.Debug("skipping log that is not finalized", log.String("log", l.path), log.Err(err))
			continue
		}
		if err := os.Remove(l.path); err != nil {
			logger.Error("remove failed", log.String("log", l.path), log.Err(err))
			continue
		}
		rep.After -= l.size
		rep.Removed = append(rep.Removed, l.path)
	}

	if len(rep.Removed) > 0 {
		logger.Info("log directory pruned",
			log.Int("removed", len(rep.Removed)),
			log.String("freed", datasize.ByteSize(rep.Before-rep.After).HumanReadable()),
			log.String("remaining", datasize.ByteSize(rep.After).HumanReadable()),
		)
	}
	if rep.After > high {
		logger.Warn("log directory still over limit",
			log.String("size", datasize.ByteSize(rep.After).HumanReadable()),
			log.String("limit", p.Limit.HumanReadable()),
		)
	}
	return rep, nil
}

// scan returns the size of every file under dir and the session logs in it,
// oldest first.
func scan(dir string) (int64, []logEntry, error) {
	var (
		total int64
		logs  []logEntry
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		if strings.HasSuffix(d.Name(), LogExt) {
			logs = append(logs, logEntry{path: filepath.Clean(path), size: info.Size(), modTime: info.ModTime()})
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].modTime.Equal(logs[j].modTime) {
			return logs[i].path < logs[j].path
		}
		return logs[i].modTime.Before(logs[j].modTime)
	})
	return total, logs, nil
}

package library

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/modlib/internal/apperr"
)

// ScanSummary counts the outcomes of a scan.
type ScanSummary struct {
	Seen      int `json:"seen"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

func (s *ScanSummary) record(o Outcome) {
	s.Seen++
	switch o {
	case Added:
		s.Added++
	case Updated:
		s.Updated++
	case NoChange:
		s.Unchanged++
	default:
		s.Failed++
	}
}

func (s *ScanSummary) merge(o ScanSummary) {
	s.Seen += o.Seen
	s.Added += o.Added
	s.Updated += o.Updated
	s.Unchanged += o.Unchanged
	s.Failed += o.Failed
}

// SweepSummary counts the outcomes of a maintenance sweep.
type SweepSummary struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// ScanDir adds or updates every accepted file below root, one file at a
// time. Per-file failures are logged and counted. Cancellation is checked
// between files and returns the partial summary with ctx.Err().
func (l *Library) ScanDir(ctx context.Context, root string) (ScanSummary, error) {
	var sum ScanSummary
	files, err := l.fs.List(root)
	if err != nil {
		return sum, err
	}
	l.logger.Info("scan: started", slog.String("root", root), slog.Int("files", len(files)))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.record(l.addOne(ctx, f.Path))
	}
	l.logger.Info("scan: finished",
		slog.String("root", root),
		slog.Int("added", sum.Added),
		slog.Int("updated", sum.Updated),
		slog.Int("failed", sum.Failed))
	return sum, nil
}

// AddFiles adds or updates each path. Directories are scanned recursively;
// explicit files bypass the extension filter.
func (l *Library) AddFiles(ctx context.Context, paths []string) (ScanSummary, error) {
	var sum ScanSummary
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			sub, err := l.ScanDir(ctx, p)
			sum.merge(sub)
			if err != nil {
				return sum, err
			}
			continue
		}
		sum.record(l.addOne(ctx, p))
	}
	return sum, nil
}

func (l *Library) addOne(ctx context.Context, path string) Outcome {
	o, err := l.AddOrUpdate(ctx, path)
	if err != nil {
		l.logger.Warn("library: not added",
			slog.String("path", path),
			slog.String("outcome", o.String()),
			slog.String("error", err.Error()))
		return o
	}
	l.logger.Debug("library: reconciled", slog.String("path", path), slog.String("outcome", o.String()))
	return o
}

// MaintenanceSweep re-runs the update path for every stored filename.
// Records whose file has become unreadable or unparsable are removed. A
// second sweep without file changes in between removes nothing.
func (l *Library) MaintenanceSweep(ctx context.Context) (SweepSummary, error) {
	var sum SweepSummary
	names, err := l.db.AllFilenames(ctx)
	if err != nil {
		return sum, err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Checked++
		o, err := l.AddOrUpdate(ctx, filepath.FromSlash(name))
		switch o {
		case Updated:
			sum.Updated++
		case IOError, ParseError:
			if derr := l.db.Delete(ctx, name); derr != nil && !errors.Is(derr, apperr.ErrNotFound) {
				l.logger.Warn("maintain: remove failed", slog.String("filename", name), slog.String("error", derr.Error()))
				sum.Failed++
				continue
			}
			l.logger.Info("maintain: removed",
				slog.String("filename", name),
				slog.String("reason", err.Error()))
			sum.Removed++
		case StoreError:
			l.logger.Warn("maintain: update failed", slog.String("filename", name), slog.String("error", err.Error()))
			sum.Failed++
		}
	}
	return sum, nil
}

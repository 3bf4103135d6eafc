package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
)

// Discovery is the outcome of scanning a candidate directory.
type Discovery struct {
	Candidates  []Candidate
	Diagnostics []entity.Diagnostic
	Stats       DirStats
}

// Discover walks root recursively, skipping hidden entries and non-PDF files, and returns
// candidates in lexical path order. Files whose content duplicates an earlier candidate
// are skipped with a diagnostic; unreadable files are skipped with a diagnostic.
func Discover(ctx context.Context, root string, logger *slog.Logger) (Discovery, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var out Discovery
	if strings.TrimSpace(root) == "" {
		return out, errors.New("candidate directory is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return out, fmt.Errorf("candidate directory: %w", err)
	}
	if !info.IsDir() {
		return out, fmt.Errorf("candidate directory %s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.Stats.Scanned++
		if walkErr != nil {
			logger.Warn("ingest.walk.error", "path", path, "error", walkErr)
			out.Stats.Failed++
			return nil
		}
		if path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		out.Stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("walk: %w", err)
	}
	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		hash, err := pages.HashFile(path)
		if err != nil {
			out.Stats.Failed++
			out.Diagnostics = append(out.Diagnostics, entity.Diagnostic{
				Code:     constants.DiagUnreadableCandidate,
				Severity: constants.SeverityWarning,
				Source:   path,
				Message:  err.Error(),
			})
			continue
		}
		if first, dup := seen[hash]; dup {
			out.Stats.Duplicates++
			out.Diagnostics = append(out.Diagnostics, entity.Diagnostic{
				Code:     constants.DiagDuplicateCandidateFile,
				Severity: constants.SeverityInfo,
				Source:   path,
				Message:  fmt.Sprintf("identical content to %s; skipped", first),
			})
			continue
		}
		seen[hash] = path

		var size int64
		if fi, err := os.Stat(path); err == nil {
			size = fi.Size()
		}
		out.Candidates = append(out.Candidates, Candidate{Path: path, HashHex: hash, Size: size})
		out.Stats.Accepted++
	}

	logger.Info("ingest.discovered",
		"root", root,
		"scanned", out.Stats.Scanned,
		"matched", out.Stats.Matched,
		"accepted", out.Stats.Accepted,
		"duplicates", out.Stats.Duplicates,
		"failed", out.Stats.Failed,
	)
	return out, nil
}

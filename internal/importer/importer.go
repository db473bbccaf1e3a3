// Package importer walks batch sources (files, directories, zip archives),
// parses the fiscal documents they contain on a worker pool, and feeds the
// parsed notes to the ledger through a single writer. A bad document is
// counted and skipped; it never aborts the batch.
package importer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/nfe-ledger/internal/config"
	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/shared"
	"github.com/nfe-ledger/internal/parser"
)

// Ingestor records a parsed note in the ledger
type Ingestor interface {
	Ingest(ctx context.Context, parsed *note.ParsedNote) (shared.IngestOutcome, error)
}

// Summary reports the per-document outcomes of one batch run
type Summary struct {
	Inserted   int `json:"inserted"`
	Duplicated int `json:"duplicated"`
	Errored    int `json:"errored"`
}

type parseResult struct {
	path   string
	parsed *note.ParsedNote
	err    error
}

type Importer struct {
	ingestor Ingestor
	cfg      *config.ImportConfig
	logger   *slog.Logger
}

func NewImporter(ingestor Ingestor, cfg *config.ImportConfig, logger *slog.Logger) *Importer {
	return &Importer{
		ingestor: ingestor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run imports every document reachable from the given sources. Documents are
// parsed concurrently but written strictly one at a time, so a batch that
// contains the same note twice still yields exactly one insert and one
// duplicate. Returns the summary accumulated so far even when the context
// is cancelled mid-batch.
func (i *Importer) Run(ctx context.Context, sources []string) (*Summary, error) {
	summary := &Summary{}
	runLogger := i.logger.With("import_run_id", uuid.New().String())

	paths, cleanup, err := i.collectDocuments(sources, summary)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	runLogger.Info("Starting import batch", "sources", len(sources), "documents", len(paths))

	pool, err := ants.NewPool(i.cfg.WorkerPoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse worker pool: %w", err)
	}
	defer pool.Release()

	// Buffered so parse workers never block; the writer may stop draining
	// early on context cancellation.
	results := make(chan parseResult, len(paths))

	var wg sync.WaitGroup
	for _, path := range paths {
		path := path
		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			parsed, parseErr := parser.ParseFile(path)
			results <- parseResult{path: path, parsed: parsed, err: parseErr}
		}); submitErr != nil {
			wg.Done()
			results <- parseResult{path: path, err: submitErr}
		}
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		i.apply(ctx, res, summary)
	}

	runLogger.Info("Import batch finished",
		"inserted", summary.Inserted,
		"duplicated", summary.Duplicated,
		"errored", summary.Errored,
	)
	return summary, nil
}

// apply runs the single-writer stage for one parsed document
func (i *Importer) apply(ctx context.Context, res parseResult, summary *Summary) {
	if res.err != nil {
		summary.Errored++
		i.logger.Warn("Skipping unparseable document", "path", res.path, "error", res.err)
		return
	}

	outcome, err := i.ingestor.Ingest(ctx, res.parsed)
	if err != nil {
		summary.Errored++
		i.logger.Error("Failed to ingest document", "path", res.path, "natural_key", res.parsed.NaturalKey, "error", err)
		return
	}

	switch outcome {
	case shared.OutcomeDuplicate:
		summary.Duplicated++
	default:
		summary.Inserted++
	}
}

// collectDocuments resolves sources into concrete document paths. Zip
// archives are extracted to temp directories that live until cleanup runs.
// An unreadable source counts as one errored document.
func (i *Importer) collectDocuments(sources []string, summary *Summary) ([]string, func(), error) {
	var paths []string
	var tempDirs []string
	cleanup := func() {
		for _, dir := range tempDirs {
			if err := os.RemoveAll(dir); err != nil {
				i.logger.Warn("Failed to remove temp extraction dir", "dir", dir, "error", err)
			}
		}
	}

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			summary.Errored++
			i.logger.Warn("Skipping unreadable source", "source", source, "error", err)
			continue
		}

		switch {
		case info.IsDir():
			found, err := i.walkDir(source)
			if err != nil {
				return paths, cleanup, err
			}
			paths = append(paths, found...)
		case strings.EqualFold(filepath.Ext(source), ".zip"):
			dir, err := i.extractZip(source)
			if err != nil {
				summary.Errored++
				i.logger.Warn("Skipping unreadable archive", "source", source, "error", err)
				continue
			}
			tempDirs = append(tempDirs, dir)
			found, err := i.walkDir(dir)
			if err != nil {
				return paths, cleanup, err
			}
			paths = append(paths, found...)
		case strings.EqualFold(filepath.Ext(source), i.cfg.DocumentExtension):
			paths = append(paths, source)
		default:
			summary.Errored++
			i.logger.Warn("Skipping unsupported source", "source", source)
		}
	}

	return paths, cleanup, nil
}

// walkDir finds all documents with the configured extension under root,
// recursively
func (i *Importer) walkDir(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), i.cfg.DocumentExtension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return paths, nil
}

// extractZip unpacks the documents of an archive into a fresh temp dir.
// Entries that would escape the target dir are rejected.
func (i *Importer) extractZip(source string) (string, error) {
	reader, err := zip.OpenReader(source)
	if err != nil {
		return "", fmt.Errorf("failed to open archive %s: %w", source, err)
	}
	defer reader.Close()

	dir, err := os.MkdirTemp("", "nfe-import-*")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(file.Name), i.cfg.DocumentExtension) {
			continue
		}

		target := filepath.Join(dir, filepath.Base(file.Name))
		if !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
			i.logger.Warn("Skipping archive entry with unsafe path", "archive", source, "entry", file.Name)
			continue
		}

		if err := extractEntry(file, target); err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("failed to extract %s from %s: %w", file.Name, source, err)
		}
	}

	return dir, nil
}

func extractEntry(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

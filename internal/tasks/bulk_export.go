package tasks

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/snipx/internal/formatter"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk snippet exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format: text, markdown, html, json, yaml
	OutputDir  string           // Base output directory (default: snipx_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 4)
	RateLimit  float64          // Snippet fetches per second when exporting by id (default: 5)
}

func (o *BulkExportOpts) defaults() {
	if o.Format == "" {
		o.Format = formatter.FormatMarkdown
	}
	if o.OutputDir == "" {
		o.OutputDir = fmt.Sprintf("snipx_export_%d", time.Now().Unix())
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = 4
	}
	if o.NumWorkers > 10 {
		o.NumWorkers = 10
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 5.0
	}
}

// BulkExport exports snippets concurrently with rate limiting and progress tracking.
//
// With no ids the whole collection is exported. Ids that cannot be fetched are reported
// as failures alongside any render or write errors; the run itself only fails when the
// snippets cannot be listed or the output directory cannot be created.
func (e *ExportEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ids []int,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: snippet source not initialized", shared.ErrServiceUnavailable)
	}
	opts.defaults()

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	e.sendProgress(prog, fetchingSnippetsUpdate(len(ids)))

	var (
		snippets []models.Snippet
		results  []SnippetExportResult
	)
	if len(ids) == 0 {
		all, err := e.source.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list snippets: %w", err)
		}
		snippets = all
	} else {
		var err error
		snippets, results, err = e.fetch(ctx, ids, opts.RateLimit)
		if err != nil {
			return nil, err
		}
	}
	total := len(snippets) + len(results)
	e.sendProgress(prog, foundSnippetsUpdate(total))

	jobs := make(chan models.Snippet, len(snippets))
	out := make(chan SnippetExportResult, len(snippets))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, out, opts)
	}

	for _, s := range snippets {
		jobs <- s
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(out)
	}()

	completed := len(results)
	for res := range out {
		completed++
		results = append(results, res)
		if res.Success {
			e.sendProgress(prog, exportCompletedUpdate(completed, total, res))
		} else {
			e.sendProgress(prog, exportFailedUpdate(completed, total, res))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("export canceled: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].SnippetID < results[j].SnippetID })

	result := &BulkExportResult{
		Record: models.ExportRecord{
			ID:        shared.GenerateID(),
			Format:    string(opts.Format),
			OutputDir: opts.OutputDir,
			Total:     total,
			CreatedAt: time.Now().UTC(),
		},
		Results: results,
	}

	manifest := formatter.Manifest{Snippets: make([]formatter.ManifestEntry, 0, len(results))}
	for _, res := range results {
		entry := formatter.ManifestEntry{ID: res.SnippetID, Title: res.Title}
		if res.Success {
			result.Record.Succeeded++
			entry.File = res.File
		} else {
			result.Record.Failed++
			entry.Error = res.Error.Error()
		}
		manifest.Snippets = append(manifest.Snippets, entry)
	}
	manifest.ExportRecord = result.Record

	path, err := formatter.WriteManifest(manifest)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = path
	e.sendProgress(prog, manifestUpdate(path))

	if e.recorder != nil {
		if err := e.recorder.Create(context.WithoutCancel(ctx), &result.Record); err != nil {
			e.logger.Warn("failed to record export", "id", result.Record.ID, "error", err)
		}
	}

	e.logger.Info("export finished",
		"format", opts.Format, "dir", opts.OutputDir,
		"succeeded", result.Record.Succeeded, "failed", result.Record.Failed)
	return result, nil
}

// fetch resolves ids one by one under the rate limit. Snippets that cannot be fetched become failures.
func (e *ExportEngine) fetch(ctx context.Context, ids []int, limit float64) ([]models.Snippet, []SnippetExportResult, error) {
	limiter := rate.NewLimiter(rate.Limit(limit), 1)

	var (
		snippets []models.Snippet
		failed   []SnippetExportResult
	)
	for _, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("export canceled: %w", err)
		}

		s, err := e.source.Get(ctx, id)
		if err != nil {
			failed = append(failed, SnippetExportResult{
				SnippetID: id,
				Title:     fmt.Sprintf("Unknown (%d)", id),
				Error:     fmt.Errorf("failed to fetch snippet: %w", err),
			})
			continue
		}
		snippets = append(snippets, *s)
	}
	return snippets, failed, nil
}

// exportWorker is a worker goroutine that exports snippets from the jobs channel.
func (e *ExportEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan models.Snippet,
	results chan<- SnippetExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for s := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- e.exportSnippet(s, opts)
	}
}

func (e *ExportEngine) exportSnippet(s models.Snippet, opts BulkExportOpts) SnippetExportResult {
	result := SnippetExportResult{SnippetID: s.ID, Title: s.DisplayTitle()}

	path, err := formatter.WriteSnippetExport(s, opts.OutputDir, opts.Format)
	if err != nil {
		result.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return result
	}
	result.File = path
	result.Success = true
	return result
}

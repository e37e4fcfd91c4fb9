package tasks

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/repositories"
	"github.com/desertthunder/snipx/internal/services"
	"github.com/desertthunder/snipx/internal/shared"
)

// SnippetSource fetches the snippets to export. [*services.SnippetService] implements it.
type SnippetSource interface {
	All(ctx context.Context) ([]models.Snippet, error)
	Get(ctx context.Context, id int) (*models.Snippet, error)
}

// ExportRecorder persists a summary of each export run. [*repositories.ExportRepository] implements it.
type ExportRecorder interface {
	Create(ctx context.Context, rec *models.ExportRecord) error
}

var (
	_ SnippetSource  = (*services.SnippetService)(nil)
	_ ExportRecorder = (*repositories.ExportRepository)(nil)
)

// SnippetExportResult is the outcome for a single snippet.
type SnippetExportResult struct {
	SnippetID int
	Title     string
	File      string
	Success   bool
	Error     error
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult struct {
	Record       models.ExportRecord
	Results      []SnippetExportResult
	ManifestPath string
}

// ExportEngine runs bulk exports against a [SnippetSource].
type ExportEngine struct {
	source   SnippetSource
	recorder ExportRecorder
	logger   *log.Logger
}

// NewExportEngine creates an engine. recorder may be nil, in which case runs are not recorded.
func NewExportEngine(source SnippetSource, recorder ExportRecorder, logger *log.Logger) *ExportEngine {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &ExportEngine{
		source:   source,
		recorder: recorder,
		logger:   shared.WithLogger(logger, "component", "export"),
	}
}

// sendProgress sends a non-blocking progress update. A nil channel is allowed.
func (e *ExportEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		e.logger.Debug("progress update dropped", "phase", update.Phase, "step", update.Step)
	}
}

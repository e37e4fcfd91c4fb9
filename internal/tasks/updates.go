package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSnippets Phase = iota
	ExportSnippet
	WriteManifest
	RecordExport
)

func (p Phase) String() string {
	switch p {
	case FetchSnippets:
		return "fetch_snippets"
	case ExportSnippet:
		return "export_snippet"
	case WriteManifest:
		return "write_manifest"
	case RecordExport:
		return "record_export"
	default:
		return ""
	}
}

func fetchingSnippetsUpdate(total int) ProgressUpdate {
	msg := "Fetching snippets..."
	if total > 0 {
		msg = fmt.Sprintf("Fetching %d snippets...", total)
	}
	return ProgressUpdate{
		Phase:   FetchSnippets,
		Step:    0,
		Total:   total,
		Message: msg,
	}
}

func foundSnippetsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSnippets,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Found %d snippets", total),
	}
}

func exportCompletedUpdate(step, total int, res SnippetExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportSnippet,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Title),
		Data:    res,
	}
}

func exportFailedUpdate(step, total int, res SnippetExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportSnippet,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Title, res.Error),
		Data:    res,
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
	}
}

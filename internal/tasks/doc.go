// Package tasks runs long snippet operations with real-time progress reporting.
//
// # Bulk Export
//
// [ExportEngine.BulkExport] writes many snippets to disk:
//
//  1. Resolves the snippets, either the user's whole collection or a list of ids
//     fetched one by one under a [rate.Limiter]
//  2. Renders each snippet on a small worker pool using the formatter package
//  3. Writes manifest.json summarizing successes and failures
//  4. Records the run through the optional [ExportRecorder]
//
// A failed snippet never aborts the run; it is reported in the result and the manifest.
//
// # Progress Reporting
//
// Progress is sent on a caller-owned channel as [ProgressUpdate] values. Sends never
// block: when the channel is full the update is dropped.
package tasks

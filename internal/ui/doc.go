// Package ui implements the shared-snippet viewer using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [FormView] : Paste a share link (or bare id) and its password
//  2. [SnippetView] : Read the unlocked snippet in a scrollable viewport and request a review with r
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Requests run as commands; each carries a generation number and responses from a superseded
// generation are dropped, so closing a snippet or opening another never shows stale content.
//
// The unlocked view and password are held in memory only and are discarded on esc.
package ui

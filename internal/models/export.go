package models

import "time"

// ExportRecord summarizes one bulk export run.
type ExportRecord struct {
	ID        string    `json:"id" yaml:"id"`
	Format    string    `json:"format" yaml:"format"`
	OutputDir string    `json:"output_dir" yaml:"output_dir"`
	Total     int       `json:"total" yaml:"total"`
	Succeeded int       `json:"succeeded" yaml:"succeeded"`
	Failed    int       `json:"failed" yaml:"failed"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

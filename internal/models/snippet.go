package models

import "time"

// Snippet is a code snippet owned by a user.
//
// Highlighted is HTML rendered by the server; it is never trusted as-is.
type Snippet struct {
	ID             int       `json:"id" yaml:"id"`
	Title          string    `json:"title" yaml:"title"`
	Code           string    `json:"code" yaml:"code"`
	LineNos        bool      `json:"linenos" yaml:"linenos"`
	Language       string    `json:"language" yaml:"language"`
	Style          string    `json:"style" yaml:"style"`
	Owner          string    `json:"owner,omitempty" yaml:"owner,omitempty"`
	Highlighted    string    `json:"highlighted,omitempty" yaml:"-"`
	UUID           string    `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	SharedPassword string    `json:"shared_password,omitempty" yaml:"-"`
	Created        time.Time `json:"created" yaml:"created"`
}

// DisplayTitle falls back to "Untitled" for snippets saved without a title.
func (s Snippet) DisplayTitle() string {
	if s.Title == "" {
		return "Untitled"
	}
	return s.Title
}

// SnippetInput is the writable subset of [Snippet].
type SnippetInput struct {
	Title          string `json:"title"`
	Code           string `json:"code"`
	LineNos        bool   `json:"linenos"`
	Language       string `json:"language,omitempty"`
	Style          string `json:"style,omitempty"`
	SharedPassword string `json:"shared_password,omitempty"`
}

// Page is a paginated list response.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// SharedSnippetView is the read-only payload returned for a shared snippet.
//
// It is never written to durable storage.
type SharedSnippetView struct {
	Title             string `json:"title" yaml:"title"`
	Language          string `json:"language" yaml:"language"`
	HighlightedMarkup string `json:"highlight" yaml:"-"`
	Review            string `json:"review,omitempty" yaml:"review,omitempty"`
}

// Review is the AI review response body.
type Review struct {
	Review string `json:"review"`
}

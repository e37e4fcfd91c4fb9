package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/desertthunder/snipx/internal/formatter"
	"github.com/desertthunder/snipx/internal/models"
)

// ReviewFunc requests a review for the previewed snippet.
type ReviewFunc func(ctx context.Context) (string, error)

// PreviewHandler serves a single shared snippet view from memory.
type PreviewHandler struct {
	mu     sync.RWMutex
	view   models.SharedSnippetView
	review ReviewFunc
}

// NewPreviewHandler copies view; review may be nil to disable the review action.
func NewPreviewHandler(view models.SharedSnippetView, review ReviewFunc) *PreviewHandler {
	return &PreviewHandler{view: view, review: review}
}

// Routes returns the HTTP routes this handler serves.
func (h *PreviewHandler) Routes() []string {
	return []string{"/", "/view.json", "/review"}
}

// View returns a copy of the current view.
func (h *PreviewHandler) View() models.SharedSnippetView {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.view
}

func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	switch r.URL.Path {
	case "/":
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		action := ""
		if h.review != nil {
			action = "/review"
		}
		data, err := formatter.PreviewPage(h.View(), action)
		h.write(w, data, err, "text/html; charset=utf-8")
	case "/view.json":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		data, err := formatter.RenderView(h.View(), formatter.FormatJSON)
		h.write(w, data, err, "application/json")
	case "/review":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.requestReview(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *PreviewHandler) write(w http.ResponseWriter, data []byte, err error, contentType string) {
	if err != nil {
		http.Error(w, "Failed to render snippet", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *PreviewHandler) requestReview(w http.ResponseWriter, r *http.Request) {
	if h.review == nil {
		http.Error(w, "Review not available", http.StatusNotFound)
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && origin != "http://"+r.Host {
		http.Error(w, "Cross-origin request rejected", http.StatusForbidden)
		return
	}

	text, err := h.review(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.mu.Lock()
	h.view.Review = text
	h.mu.Unlock()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

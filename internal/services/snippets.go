package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
)

// SnippetService manages the user's snippets and reads shared ones.
//
// Shared reads go through an anonymous client: they need no session and never touch one.
type SnippetService struct {
	api       *APIService
	anonymous *APIService
	paths     shared.PathsConfig
}

func NewSnippetService(api *APIService, paths shared.PathsConfig) *SnippetService {
	return &SnippetService{api: api, anonymous: api.Anonymous(), paths: paths}
}

func (s *SnippetService) snippetPath(id int) string {
	return s.paths.Snippets + strconv.Itoa(id) + "/"
}

func (s *SnippetService) sharedPath(uuid string) string {
	return s.paths.Shared + url.PathEscape(uuid) + "/"
}

// notFound maps a 404 on an owned snippet to [shared.ErrSnippetNotFound].
func notFound(err error, id int) error {
	if HasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %d", shared.ErrSnippetNotFound, id)
	}
	return err
}

// List returns one page of the user's snippets. Pages start at 1.
func (s *SnippetService) List(ctx context.Context, page int) (*models.Page[models.Snippet], error) {
	path := s.paths.Snippets
	if page > 1 {
		path += "?page=" + strconv.Itoa(page)
	}

	var out models.Page[models.Snippet]
	if err := s.api.JSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// All walks every page of the user's snippets.
func (s *SnippetService) All(ctx context.Context) ([]models.Snippet, error) {
	var all []models.Snippet
	for page := 1; ; page++ {
		p, err := s.List(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		if p.Next == nil || len(p.Results) == 0 {
			return all, nil
		}
	}
}

func (s *SnippetService) Get(ctx context.Context, id int) (*models.Snippet, error) {
	var out models.Snippet
	if err := s.api.JSON(ctx, http.MethodGet, s.snippetPath(id), nil, &out); err != nil {
		return nil, notFound(err, id)
	}
	return &out, nil
}

func (s *SnippetService) Create(ctx context.Context, in models.SnippetInput) (*models.Snippet, error) {
	var out models.Snippet
	if err := s.api.JSON(ctx, http.MethodPost, s.paths.Snippets, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SnippetService) Update(ctx context.Context, id int, in models.SnippetInput) (*models.Snippet, error) {
	var out models.Snippet
	if err := s.api.JSON(ctx, http.MethodPut, s.snippetPath(id), in, &out); err != nil {
		return nil, notFound(err, id)
	}
	return &out, nil
}

func (s *SnippetService) Delete(ctx context.Context, id int) error {
	return notFound(s.api.JSON(ctx, http.MethodDelete, s.snippetPath(id), nil, nil), id)
}

// Review asks the backend for an AI review of an owned snippet.
func (s *SnippetService) Review(ctx context.Context, id int) (string, error) {
	var out models.Review
	if err := s.api.JSON(ctx, http.MethodPost, s.snippetPath(id)+"review/", nil, &out); err != nil {
		return "", notFound(err, id)
	}
	return out.Review, nil
}

// Shared fetches a shared snippet with its access password.
func (s *SnippetService) Shared(ctx context.Context, uuid, password string) (*models.SharedSnippetView, error) {
	var out models.SharedSnippetView
	body := map[string]string{"password": password}
	if err := s.anonymous.JSON(ctx, http.MethodPost, s.sharedPath(uuid), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SharedReview requests an AI review of a shared snippet.
func (s *SnippetService) SharedReview(ctx context.Context, uuid, password string) (string, error) {
	var out models.Review
	body := map[string]string{"password": password}
	if err := s.anonymous.JSON(ctx, http.MethodPost, s.sharedPath(uuid)+"review/", body, &out); err != nil {
		return "", err
	}
	if out.Review == "" {
		return "", errors.New("review response was empty")
	}
	return out.Review, nil
}

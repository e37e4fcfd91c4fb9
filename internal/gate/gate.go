package gate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/services"
	"github.com/desertthunder/snipx/internal/shared"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidShare covers a wrong password, an unknown identifier and an expired share alike.
	ErrInvalidShare = errors.New("invalid password or snippet not found")
	// ErrShareUnavailable means the server could not be asked at all.
	ErrShareUnavailable  = errors.New("shared snippets are unavailable right now")
	ErrReviewUnavailable = errors.New("review unavailable")
)

// Fetcher performs the shared-snippet requests. [*services.SnippetService] implements it.
type Fetcher interface {
	Shared(ctx context.Context, uuid, password string) (*models.SharedSnippetView, error)
	SharedReview(ctx context.Context, uuid, password string) (string, error)
}

var _ Fetcher = (*services.SnippetService)(nil)

// Gate exchanges a share identifier and password for a read-only snippet view.
//
// It holds no session and stores nothing; identical concurrent requests share one round trip.
type Gate struct {
	fetcher Fetcher
	logger  *log.Logger
	flight  singleflight.Group
}

func New(fetcher Fetcher, logger *log.Logger) *Gate {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Gate{fetcher: fetcher, logger: shared.WithLogger(logger, "component", "gate")}
}

func key(op, uuid, password string) string {
	sum := sha256.Sum256([]byte(password))
	return op + "\x00" + uuid + "\x00" + hex.EncodeToString(sum[:])
}

// FetchSharedSnippet returns the view, [ErrInvalidShare] for any rejection, or
// [ErrShareUnavailable] when the server could not answer.
func (g *Gate) FetchSharedSnippet(ctx context.Context, uuid, password string) (*models.SharedSnippetView, error) {
	if strings.TrimSpace(uuid) == "" || password == "" {
		return nil, ErrInvalidShare
	}

	v, err, _ := g.flight.Do(key("fetch", uuid, password), func() (any, error) {
		return g.fetcher.Shared(ctx, uuid, password)
	})
	if err != nil {
		return nil, g.classify("fetch", err, ErrInvalidShare, ErrShareUnavailable)
	}

	view := *v.(*models.SharedSnippetView)
	return &view, nil
}

// RequestReview asks for a review of a shared snippet. Every failure is [ErrReviewUnavailable].
func (g *Gate) RequestReview(ctx context.Context, uuid, password string) (string, error) {
	if strings.TrimSpace(uuid) == "" || password == "" {
		return "", ErrReviewUnavailable
	}

	v, err, _ := g.flight.Do(key("review", uuid, password), func() (any, error) {
		return g.fetcher.SharedReview(ctx, uuid, password)
	})
	if err != nil {
		return "", g.classify("review", err, ErrReviewUnavailable, ErrReviewUnavailable)
	}
	return v.(string), nil
}

// classify maps client errors to rejected and everything else to unavailable.
// The server's own message is logged, never returned.
func (g *Gate) classify(op string, err, rejected, unavailable error) error {
	if apiErr, ok := services.AsAPIError(err); ok && apiErr.ClientError() {
		g.logger.Debug("shared request rejected", "op", op, "status", apiErr.Status)
		return rejected
	}
	g.logger.Warn("shared request failed", "op", op, "error", err)
	return unavailable
}

package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/snipx/internal/formatter"
	"github.com/desertthunder/snipx/internal/gate"
	"github.com/desertthunder/snipx/internal/server"
	"github.com/desertthunder/snipx/internal/shared"
	"github.com/urfave/cli/v3"
)

// shareCredentials resolves the link argument to a share identifier and obtains its password.
func (r *Runner) shareCredentials(cmd *cli.Command) (string, string, error) {
	link := cmd.StringArg("link")
	if link == "" {
		var err error
		if link, err = r.readLine("Share link: "); err != nil {
			return "", "", err
		}
	}

	id, ok := gate.ResolveShareID(link)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a share link", shared.ErrInvalidArgument, link)
	}

	password := cmd.String("password")
	if password == "" {
		var err error
		if password, err = r.readPassword("Password: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		return "", "", fmt.Errorf("%w: share password", shared.ErrMissingArgument)
	}
	return id, password, nil
}

// SharedOpen prints a shared snippet. Nothing about it is stored.
func (r *Runner) SharedOpen(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	id, password, err := r.shareCredentials(cmd)
	if err != nil {
		return err
	}
	g, err := r.shareGate()
	if err != nil {
		return err
	}

	view, err := g.FetchSharedSnippet(ctx, id, password)
	if err != nil {
		return err
	}

	data, err := formatter.RenderView(*view, format)
	if err != nil {
		return err
	}
	return r.writeRendered(data)
}

// SharedReview prints an AI review of a shared snippet.
func (r *Runner) SharedReview(ctx context.Context, cmd *cli.Command) error {
	id, password, err := r.shareCredentials(cmd)
	if err != nil {
		return err
	}
	g, err := r.shareGate()
	if err != nil {
		return err
	}

	review, err := g.RequestReview(ctx, id, password)
	if err != nil {
		return err
	}
	return r.writeRendered([]byte(review))
}

// SharedPreview serves a shared snippet on a loopback address until interrupted.
//
// The password is held only by the review callback for the lifetime of the server.
func (r *Runner) SharedPreview(ctx context.Context, cmd *cli.Command) error {
	id, password, err := r.shareCredentials(cmd)
	if err != nil {
		return err
	}
	g, err := r.shareGate()
	if err != nil {
		return err
	}

	view, err := g.FetchSharedSnippet(ctx, id, password)
	if err != nil {
		return err
	}

	router := server.NewRouter()
	router.Use(server.RequestLogger(r.logger), server.SecureHeaders)
	router.Handler(server.NewPreviewHandler(*view, func(ctx context.Context) (string, error) {
		return g.RequestReview(ctx, id, password)
	}))

	srv, err := server.NewPreviewServer(r.config.Preview.Addr(), router, r.logger)
	if err != nil {
		return err
	}

	r.writePlain("Previewing %q at %s (Ctrl+C to stop)\n", view.Title, srv.URL())
	if cmd.Bool("open") {
		if err := shared.OpenBrowser(srv.URL()); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	return srv.Serve(ctx)
}

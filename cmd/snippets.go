package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/snipx/internal/formatter"
	"github.com/desertthunder/snipx/internal/gate"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/repositories"
	"github.com/desertthunder/snipx/internal/shared"
	"github.com/desertthunder/snipx/internal/tasks"
	"github.com/urfave/cli/v3"
)

func snippetID(cmd *cli.Command) (int, error) {
	id := cmd.IntArg("id")
	if id <= 0 {
		return 0, fmt.Errorf("%w: snippet id", shared.ErrMissingArgument)
	}
	return id, nil
}

// SnippetsList prints one page of snippets, or every page with --all.
func (r *Runner) SnippetsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	client, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}

	var (
		snippets []models.Snippet
		count    int
	)
	if cmd.Bool("all") {
		snippets, err = client.Snippets.All(ctx)
		count = len(snippets)
	} else {
		var page *models.Page[models.Snippet]
		if page, err = client.Snippets.List(ctx, cmd.Int("page")); err == nil {
			snippets, count = page.Results, page.Count
		}
	}
	if err != nil {
		return r.checkSession(ctx, mgr, err)
	}

	switch format {
	case formatter.FormatJSON:
		return r.writeJSON(snippets, true)
	case formatter.FormatYAML:
		data, err := shared.MarshalYAML(snippets)
		if err != nil {
			return err
		}
		return r.writeRendered(data)
	}

	r.writePlainHeader(fmt.Sprintf("Snippets (%d of %d)", len(snippets), count))
	for _, s := range snippets {
		tag := ""
		if s.UUID != "" {
			tag = " [shared]"
		}
		r.writePlain("%5d  %-40s  %-12s%s\n", s.ID, s.DisplayTitle(), s.Language, tag)
	}
	return nil
}

// SnippetsGet prints a snippet in the requested format.
func (r *Runner) SnippetsGet(ctx context.Context, cmd *cli.Command) error {
	id, err := snippetID(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	client, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}

	s, err := client.Snippets.Get(ctx, id)
	if err != nil {
		return r.checkSession(ctx, mgr, err)
	}

	data, err := formatter.RenderSnippet(*s, format)
	if err != nil {
		return err
	}
	return r.writeRendered(data)
}

// readCode loads snippet code from --file, where "-" means stdin.
func (r *Runner) readCode(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(r.input)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read code: %w", err)
	}
	return string(data), nil
}

// applySnippetFlags copies every flag that was set onto in.
func (r *Runner) applySnippetFlags(cmd *cli.Command, in *models.SnippetInput) error {
	if cmd.IsSet("title") {
		in.Title = cmd.String("title")
	}
	if cmd.IsSet("language") {
		in.Language = cmd.String("language")
	}
	if cmd.IsSet("style") {
		in.Style = cmd.String("style")
	}
	if cmd.IsSet("linenos") {
		in.LineNos = cmd.Bool("linenos")
	}
	if cmd.IsSet("share-password") {
		in.SharedPassword = cmd.String("share-password")
	}
	if cmd.IsSet("file") {
		code, err := r.readCode(cmd.String("file"))
		if err != nil {
			return err
		}
		in.Code = code
	}
	return nil
}

// SnippetsCreate creates a snippet. Code comes from --file or, when omitted, stdin.
func (r *Runner) SnippetsCreate(ctx context.Context, cmd *cli.Command) error {
	client, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}

	var in models.SnippetInput
	if err := r.applySnippetFlags(cmd, &in); err != nil {
		return err
	}
	if !cmd.IsSet("file") {
		if in.Code, err = r.readCode("-"); err != nil {
			return err
		}
	}
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("%w: snippet code is empty", shared.ErrInvalidInput)
	}

	s, err := client.Snippets.Create(ctx, in)
	if err != nil {
		return r.checkSession(ctx, mgr, err)
	}

	r.logger.Info("created snippet", "id", s.ID)
	return r.writePlain("✓ Created snippet %d: %s\n", s.ID, s.DisplayTitle())
}

// SnippetsUpdate replaces a snippet with its current fields overridden by the flags that were set.
func (r *Runner) SnippetsUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := snippetID(cmd)
	if err != nil {
		return err
	}

	client, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}

	current, err := client.Snippets.Get(ctx, id)
	if err != nil {
		return r.checkSession(ctx, mgr, err)
	}

	in := models.SnippetInput{
		Title:          current.Title,
		Code:           current.Code,
		LineNos:        current.LineNos,
		Language:       current.Language,
		Style:          current.Style,
		SharedPassword: current.SharedPassword,
	}
	if err := r.applySnippetFlags(cmd, &in); err != nil {
		return err
	}

	s, err := client.Snippets.Update(ctx, id, in)
	if err != nil {
		return r.checkSession(ctx, mgr, err)
	}
	return r.writePlain("✓ Updated snippet %d: %s\n", s.ID, s.DisplayTitle())
}

// SnippetsDelete deletes a snippet.
func (r *Runner) SnippetsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := snippetID(cmd)
	if err != nil {
		return err
	}

	client, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}

	if err := client.Snippets.Delete(ctx, id); err != nil {
		return r.checkSession(ctx, mgr, err)
	}
	return r.writePlain("✓ Deleted snippet %d\n", id)
}

// SnippetsReview prints an AI review of an owned snippet.
func (r *Runner) SnippetsReview(ctx context.Context, cmd *cli.Command) error {
	id, err := snippetID(cmd)
	if err != nil {
		return err
	}

	client, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("requesting review", "id", id)
	review, err := client.Snippets.Review(ctx, id)
	if err != nil {
		return r.checkSession(ctx, mgr, err)
	}
	return r.writeRendered([]byte(review))
}

// SnippetsShare prints the link and password that open a snippet without an account.
func (r *Runner) SnippetsShare(ctx context.Context, cmd *cli.Command) error {
	id, err := snippetID(cmd)
	if err != nil {
		return err
	}

	client, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}

	s, err := client.Snippets.Get(ctx, id)
	if err != nil {
		return r.checkSession(ctx, mgr, err)
	}
	if s.UUID == "" {
		return fmt.Errorf("%w: snippet %d has no share link", shared.ErrInvalidArgument, id)
	}

	link := gate.ShareLink(r.config.API.FrontendURL, s.UUID)
	r.writePlain("Link:     %s\n", link)
	if s.SharedPassword != "" {
		r.writePlain("Password: %s\n", s.SharedPassword)
	} else {
		r.writePlain("Password: (none set, use 'snipx snippets update %d --share-password ...')\n", id)
	}

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(link); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}
	return nil
}

// SnippetsExport writes snippets to files with a manifest and records the run locally.
func (r *Runner) SnippetsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	client, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}
	db, err := r.database()
	if err != nil {
		return err
	}

	opts := tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: r.config.Export.Workers,
		RateLimit:  r.config.Export.RateLimit,
	}
	if cmd.IsSet("workers") {
		opts.NumWorkers = cmd.Int("workers")
	}
	if cmd.IsSet("rate-limit") {
		opts.RateLimit = cmd.Float("rate-limit")
	}

	engine := tasks.NewExportEngine(client.Snippets, repositories.NewExportRepository(db), r.logger)

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := engine.BulkExport(ctx, progress, cmd.IntArgs("ids"), opts)
	close(progress)
	<-done
	if err != nil {
		return r.checkSession(ctx, mgr, err)
	}

	r.writePlainln("Exported %d of %d snippets to %s", result.Record.Succeeded, result.Record.Total, result.Record.OutputDir)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	if result.Record.Failed > 0 {
		return fmt.Errorf("%w: %d snippets failed to export", shared.ErrAPIRequest, result.Record.Failed)
	}
	return nil
}

// SnippetsExports lists recorded export runs, newest first.
func (r *Runner) SnippetsExports(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	records, err := repositories.NewExportRepository(db).List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	switch format {
	case formatter.FormatJSON:
		return r.writeJSON(records, true)
	case formatter.FormatYAML:
		data, err := shared.MarshalYAML(records)
		if err != nil {
			return err
		}
		return r.writeRendered(data)
	}

	if len(records) == 0 {
		return r.writePlain("No exports yet\n")
	}
	for _, rec := range records {
		r.writePlain("%s  %-8s  %3d/%-3d  %s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.Format, rec.Succeeded, rec.Total, rec.OutputDir)
	}
	return nil
}

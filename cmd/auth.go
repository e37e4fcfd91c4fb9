package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/snipx/internal/formatter"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/session"
	"github.com/desertthunder/snipx/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin exchanges a username and password for a session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	mgr, err := r.sessionManager(ctx)
	if err != nil {
		return err
	}

	username := cmd.String("username")
	if username == "" {
		if username, err = r.readLine("Username: "); err != nil {
			return err
		}
	}
	password, err := r.readPassword("Password: ")
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", shared.ErrMissingArgument)
	}

	r.logger.Info("logging in", "user", username)
	if res := mgr.Login(ctx, username, password); !res.Success {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, res.Error)
	}

	return r.writePlain("✓ Logged in as %s\n", mgr.Identity().Username)
}

// AuthRegister creates an account and starts a session for it.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	mgr, err := r.sessionManager(ctx)
	if err != nil {
		return err
	}

	username := cmd.String("username")
	if username == "" {
		if username, err = r.readLine("Username: "); err != nil {
			return err
		}
	}
	email := cmd.String("email")
	if email == "" && !cmd.IsSet("email") {
		if email, err = r.readLine("Email (optional): "); err != nil {
			return err
		}
	}

	password, err := r.readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := r.readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", shared.ErrMissingArgument)
	}
	if password != confirm {
		return fmt.Errorf("%w: passwords do not match", shared.ErrInvalidInput)
	}

	r.logger.Info("registering", "user", username)
	if res := mgr.Register(ctx, username, email, password); !res.Success {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, res.Error)
	}

	return r.writePlain("✓ Registered and logged in as %s\n", mgr.Identity().Username)
}

// AuthLogout ends the session. Local state is forgotten even when the server cannot be reached.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	mgr, err := r.sessionManager(ctx)
	if err != nil {
		return err
	}
	if mgr.State() != session.Authenticated {
		return r.writePlain("Not logged in\n")
	}

	if res := mgr.Logout(ctx); !res.Success {
		r.writePlain("✓ Local session cleared\n")
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, res.Error)
	}
	return r.writePlain("✓ Logged out\n")
}

type statusReport struct {
	session.Snapshot `yaml:",inline"`
	Token            *session.TokenInfo `json:"token,omitempty" yaml:"token,omitempty"`
}

// AuthStatus waits for the stored session to be verified and reports who is logged in.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	mgr, err := r.sessionManager(ctx)
	if err != nil {
		return err
	}

	if err := r.verification(); err != nil {
		r.logger.Debug("verification failed", "error", err)
	}

	report := statusReport{Snapshot: mgr.Snapshot()}
	if info, ok := session.InspectToken(mgr.Token()); ok {
		report.Token = &info
	}

	switch format {
	case formatter.FormatJSON:
		return r.writeJSON(report, true)
	case formatter.FormatYAML:
		data, err := shared.MarshalYAML(report)
		if err != nil {
			return err
		}
		return r.writeRendered(data)
	}

	r.writePlain("Status: %s\n", report.State)
	if report.Identity != nil {
		r.writePlain("User: %s (id %d)\n", report.Identity.Username, report.Identity.ID)
	}
	if report.Token != nil && !report.Token.ExpiresAt.IsZero() {
		if report.Token.Expired(time.Now()) {
			r.writePlain("Token: expired at %s\n", report.Token.ExpiresAt.Local().Format(time.RFC1123))
		} else {
			r.writePlain("Token: expires %s\n", report.Token.ExpiresAt.Local().Format(time.RFC1123))
		}
	}
	if report.Error != "" {
		r.writePlain("Last error: %s\n", report.Error)
	}
	return nil
}

// AuthProfile shows the current profile, or applies a partial update when any field flag is given.
func (r *Runner) AuthProfile(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	_, mgr, err := r.authenticated(ctx)
	if err != nil {
		return err
	}

	var update models.ProfileUpdate
	for flag, field := range map[string]**string{
		"username":   &update.Username,
		"email":      &update.Email,
		"first-name": &update.FirstName,
		"last-name":  &update.LastName,
	} {
		if cmd.IsSet(flag) {
			value := cmd.String(flag)
			*field = &value
		}
	}

	if !update.Empty() {
		identity := mgr.Identity()
		if res := mgr.UpdateProfile(ctx, identity.ID, update); !res.Success {
			return fmt.Errorf("%w: %s", shared.ErrAPIRequest, res.Error)
		}
		r.logger.Info("profile updated")
	}

	data, err := formatter.RenderIdentity(*mgr.Identity(), format)
	if err != nil {
		return err
	}
	return r.writeRendered(data)
}

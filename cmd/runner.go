package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/snipx/internal/gate"
	"github.com/desertthunder/snipx/internal/repositories"
	"github.com/desertthunder/snipx/internal/services"
	"github.com/desertthunder/snipx/internal/session"
	"github.com/desertthunder/snipx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The API client, the session manager and the database are built on first use so that
// commands which need none of them (setup, shared access) never open the session store.
type Runner struct {
	config     *shared.Config
	configPath string
	client     *services.Client
	storage    session.Storage
	session    *session.Manager
	verified   <-chan error
	verifyErr  error
	gate       *gate.Gate
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	prompts    io.Writer
	input      *bufio.Reader
	stdin      io.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Client     *services.Client
	Storage    session.Storage
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Prompts    io.Writer // Where interactive prompts are written (default: stderr)
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Prompts == nil {
		opts.Prompts = os.Stderr
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		client:     opts.Client,
		storage:    opts.Storage,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		prompts:    opts.Prompts,
		input:      bufio.NewReader(opts.Input),
		stdin:      opts.Input,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, snippetsCommand, sharedCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure is the root Before hook: it loads the config file and applies flag overrides.
//
// A missing config file is only an error when its path was given explicitly.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else if cmd.IsSet("config") {
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	if url := cmd.String("api-url"); url != "" {
		r.config.API.BaseURL = url
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return ctx, r.config.Validate()
}

// Close releases the database, if one was opened.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	r.verification()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// SetLogger replaces the logger, e.g. to redirect output while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) apiClient() (*services.Client, error) {
	if r.client != nil {
		return r.client, nil
	}

	client, err := services.NewClient(r.config.API, r.httpClient, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	r.client = client
	return client, nil
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}
	r.db = db
	return db, nil
}

// sessionManager returns the session manager. A stored session is restored at once and
// verified in the background; see [Runner.verification].
func (r *Runner) sessionManager(ctx context.Context) (*session.Manager, error) {
	if r.session != nil {
		return r.session, nil
	}

	client, err := r.apiClient()
	if err != nil {
		return nil, err
	}

	if r.storage == nil {
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		r.storage = repositories.NewSessionStore(db)
	}

	r.session = session.NewManager(r.storage, client.Auth, r.logger)
	r.verified = r.session.Initialize(ctx)
	return r.session, nil
}

// verification waits for the background check of a restored session and returns its result.
func (r *Runner) verification() error {
	if r.verified != nil {
		r.verifyErr = <-r.verified
		r.verified = nil
	}
	return r.verifyErr
}

// authenticated returns the API client for commands that act on the user's own snippets.
func (r *Runner) authenticated(ctx context.Context) (*services.Client, *session.Manager, error) {
	mgr, err := r.sessionManager(ctx)
	if err != nil {
		return nil, nil, err
	}
	if verr := r.verification(); verr != nil && errors.Is(verr, shared.ErrNotAuthenticated) {
		if services.HasStatus(verr, http.StatusUnauthorized, http.StatusForbidden) {
			return nil, nil, fmt.Errorf("%w: session expired, run 'snipx auth login' again", shared.ErrNotAuthenticated)
		}
		return nil, nil, fmt.Errorf("%w: session could not be verified, run 'snipx auth login' again", shared.ErrNotAuthenticated)
	}
	if mgr.State() != session.Authenticated {
		return nil, nil, fmt.Errorf("%w: run 'snipx auth login' first", shared.ErrNotAuthenticated)
	}
	return r.client, mgr, nil
}

// checkSession turns a rejected credential into a verified logout so the stale session is not reused.
func (r *Runner) checkSession(ctx context.Context, mgr *session.Manager, err error) error {
	if err == nil || !session.IsNotAuthenticated(err) {
		return err
	}
	if verr := mgr.Verify(ctx); verr != nil && errors.Is(verr, shared.ErrNotAuthenticated) {
		return fmt.Errorf("%w: session expired, run 'snipx auth login' again", shared.ErrNotAuthenticated)
	}
	return err
}

func (r *Runner) shareGate() (*gate.Gate, error) {
	if r.gate != nil {
		return r.gate, nil
	}

	client, err := r.apiClient()
	if err != nil {
		return nil, err
	}
	r.gate = gate.New(client.Snippets, r.logger)
	return r.gate, nil
}

// readLine prompts for a single line of input.
func (r *Runner) readLine(prompt string) (string, error) {
	fmt.Fprint(r.prompts, prompt)

	line, err := r.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("%w: failed to read input: %v", shared.ErrMissingArgument, err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword prompts for a secret without echo when stdin is a terminal.
//
// Piped input is read line by line so that scripts can feed passwords.
func (r *Runner) readPassword(prompt string) (string, error) {
	f, ok := r.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return r.readLine(prompt)
	}

	fmt.Fprint(r.prompts, prompt)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(r.prompts)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// writeRendered writes formatter output, terminated by exactly one newline.
func (r *Runner) writeRendered(data []byte) error {
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

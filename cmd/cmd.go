// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlag(value string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, markdown, html, json, yaml",
		Value:   value,
	}
}

func linkArg() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "link"}}
}

func passwordFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "Share password (prompted when omitted)",
	}
}

func snippetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "title",
			Aliases: []string{"t"},
			Usage:   "Snippet title",
		},
		&cli.StringFlag{
			Name:    "language",
			Aliases: []string{"l"},
			Usage:   "Highlighting language (e.g. python, go)",
		},
		&cli.StringFlag{
			Name:  "style",
			Usage: "Highlighting style (e.g. friendly, monokai)",
		},
		&cli.BoolFlag{
			Name:  "linenos",
			Usage: "Show line numbers",
		},
		&cli.StringFlag{
			Name:  "file",
			Usage: "Read code from a file; '-' reads stdin",
		},
		&cli.StringFlag{
			Name:  "share-password",
			Usage: "Password required to open the snippet's share link",
		},
	}
}

// setupCommand handles setup operations for configuration and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write the default configuration file",
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles the user session.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Log in, register and manage the current session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with username and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Username (prompted when omitted)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "register",
				Usage: "Create an account and log in",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Username (prompted when omitted)",
					},
					&cli.StringFlag{
						Name:    "email",
						Aliases: []string{"e"},
						Usage:   "Email address",
					},
				},
				Action: r.AuthRegister,
			},
			{
				Name:   "logout",
				Usage:  "End the session and forget it locally",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Verify the stored session with the server",
				Flags:  []cli.Flag{formatFlag("text")},
				Action: r.AuthStatus,
			},
			{
				Name:  "profile",
				Usage: "Show or update the current user's profile",
				Flags: []cli.Flag{
					formatFlag("text"),
					&cli.StringFlag{Name: "username", Usage: "New username"},
					&cli.StringFlag{Name: "email", Usage: "New email address"},
					&cli.StringFlag{Name: "first-name", Usage: "New first name"},
					&cli.StringFlag{Name: "last-name", Usage: "New last name"},
				},
				Action: r.AuthProfile,
			},
		},
	}
}

// snippetsCommand handles the user's own snippets.
func snippetsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "snippets",
		Aliases: []string{"sn"},
		Usage:   "Manage your snippets",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List your snippets",
				Flags: []cli.Flag{
					formatFlag("text"),
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page to show",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Walk every page",
					},
				},
				Action: r.SnippetsList,
			},
			{
				Name:      "get",
				Usage:     "Show one snippet",
				Arguments: []cli.Argument{&cli.IntArg{Name: "id"}},
				Flags:     []cli.Flag{formatFlag("text")},
				Action:    r.SnippetsGet,
			},
			{
				Name:   "create",
				Usage:  "Create a snippet from a file or stdin",
				Flags:  snippetFlags(),
				Action: r.SnippetsCreate,
			},
			{
				Name:      "update",
				Usage:     "Change fields of a snippet; unset flags keep their value",
				Arguments: []cli.Argument{&cli.IntArg{Name: "id"}},
				Flags:     snippetFlags(),
				Action:    r.SnippetsUpdate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a snippet",
				Arguments: []cli.Argument{&cli.IntArg{Name: "id"}},
				Action:    r.SnippetsDelete,
			},
			{
				Name:      "review",
				Usage:     "Ask for an AI review of a snippet",
				Arguments: []cli.Argument{&cli.IntArg{Name: "id"}},
				Action:    r.SnippetsReview,
			},
			{
				Name:      "share",
				Usage:     "Print the share link and password of a snippet",
				Arguments: []cli.Argument{&cli.IntArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the link in the browser",
					},
				},
				Action: r.SnippetsShare,
			},
			{
				Name:      "export",
				Usage:     "Export snippets to files (all of them when no ids are given)",
				Arguments: []cli.Argument{&cli.IntArgs{Name: "ids", Min: 0, Max: -1}},
				Flags: []cli.Flag{
					formatFlag("markdown"),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: snipx_export_{timestamp})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers (default from config)",
					},
					&cli.FloatFlag{
						Name:  "rate-limit",
						Usage: "Snippet fetches per second (default from config)",
					},
				},
				Action: r.SnippetsExport,
			},
			{
				Name:  "exports",
				Usage: "Show recent export runs",
				Flags: []cli.Flag{
					formatFlag("text"),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 10,
					},
				},
				Action: r.SnippetsExports,
			},
		},
	}
}

// sharedCommand handles password-protected shared snippets. No session is used.
func sharedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "shared",
		Usage: "Open snippets shared with you",
		Commands: []*cli.Command{
			{
				Name:      "open",
				Usage:     "Print a shared snippet",
				Arguments: linkArg(),
				Flags:     []cli.Flag{passwordFlag(), formatFlag("text")},
				Action:    r.SharedOpen,
			},
			{
				Name:      "review",
				Usage:     "Ask for an AI review of a shared snippet",
				Arguments: linkArg(),
				Flags:     []cli.Flag{passwordFlag()},
				Action:    r.SharedReview,
			},
			{
				Name:      "preview",
				Usage:     "Serve a shared snippet as a local web page",
				Arguments: linkArg(),
				Flags: []cli.Flag{
					passwordFlag(),
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the preview in the browser",
						Value: true,
					},
				},
				Action: r.SharedPreview,
			},
		},
	}
}

// tuiCommand launches the interactive shared snippet viewer.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Usage:     "Open a shared snippet interactively",
		Arguments: linkArg(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI is running",
				Value: "./tmp/snipx-tui.log",
			},
		},
		Action: r.TUI,
	}
}

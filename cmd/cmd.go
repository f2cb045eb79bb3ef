// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, startCommand, watchCommand, statusCommand, resultsCommand,
		editCommand, searchCommand, cancelCommand, authCommand, jobsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// startCommand begins a new playlist generation workflow.
func startCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start a playlist generation run from a mood prompt",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "prompt",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "genre",
				Aliases: []string{"g"},
				Usage:   "Optional genre hint",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Watch the run interactively after starting",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Start,
	}
}

// watchCommand attaches an interactive view to a running session.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch a running session interactively",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "session",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Print stage transitions as log lines instead of the TUI",
			},
		},
		Action: r.Watch,
	}
}

// statusCommand prints the current workflow status.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the current status of a session",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "session",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Status,
	}
}

// resultsCommand prints or exports the recommendation results.
func resultsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "results",
		Usage: "Show or export a session's recommendations",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "session",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, csv, markdown",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (defaults to stdout)",
			},
		},
		Action: r.Results,
	}
}

// editCommand applies optimistic edits to a paused session.
func editCommand(r *Runner) *cli.Command {
	sessionFlag := &cli.StringFlag{
		Name:     "session",
		Aliases:  []string{"s"},
		Usage:    "Session ID",
		Required: true,
	}

	return &cli.Command{
		Name:  "edit",
		Usage: "Edit the recommendation list while the run awaits input",
		Commands: []*cli.Command{
			{
				Name:  "reorder",
				Usage: "Move a track to a new position",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.StringFlag{
						Name:     "track",
						Aliases:  []string{"t"},
						Usage:    "Track ID to move",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "to",
						Usage:    "New zero-based position",
						Required: true,
					},
				},
				Action: r.EditReorder,
			},
			{
				Name:  "remove",
				Usage: "Remove a track",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.StringFlag{
						Name:     "track",
						Aliases:  []string{"t"},
						Usage:    "Track ID to remove",
						Required: true,
					},
				},
				Action: r.EditRemove,
			},
			{
				Name:  "add",
				Usage: "Add a track from search results",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.StringFlag{
						Name:     "uri",
						Usage:    "Provider URI of the track",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Track name",
					},
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Artist names, comma separated",
					},
				},
				Action: r.EditAdd,
			},
		},
	}
}

// searchCommand looks up candidate tracks to add.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the track catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Read queries line by line from stdin",
			},
		},
		Action: r.Search,
	}
}

// cancelCommand stops a running workflow.
func cancelCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "Cancel a running session",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "session",
			},
		},
		Action: r.Cancel,
	}
}

// authCommand manages the authenticated identity.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the authenticated identity",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the current identity, re-validating in the background",
				Action: r.AuthStatus,
			},
			{
				Name:  "login",
				Usage: "Establish a session from provider tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "access-token",
						Usage:    "Provider access token",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "refresh-token",
						Usage: "Provider refresh token",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Clear the local identity and end the session",
				Action: r.AuthLogout,
			},
		},
	}
}

// jobsCommand lists recent workflow runs.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "List recently started runs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Jobs,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the local database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

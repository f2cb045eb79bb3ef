package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/formatter"
	"github.com/dennisjooo/moodlist/internal/shared"
	"github.com/dennisjooo/moodlist/internal/ui"
	"github.com/dennisjooo/moodlist/internal/workflow"
	"github.com/urfave/cli/v3"
)

// Start begins a new workflow run from a mood prompt.
func (r *Runner) Start(ctx context.Context, cmd *cli.Command) error {
	prompt := cmd.StringArg("prompt")
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: mood prompt", shared.ErrMissingArgument)
	}

	session := r.newSession()

	reqCtx, cancel := r.requestCtx(ctx)
	started, err := session.Start(reqCtx, prompt, cmd.String("genre"))
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}

	if cmd.Bool("watch") {
		return r.watchSession(ctx, session)
	}

	if cmd.Bool("json") {
		return r.writeJSON(started, true)
	}
	return r.writePlainln("Started session %s\nFollow along with: moodlist watch %s", started.SessionID, started.SessionID)
}

// Watch attaches an interactive view to an existing session.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	session := r.newSession()

	reqCtx, cancel := r.requestCtx(ctx)
	err := session.Load(reqCtx, sessionID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if cmd.Bool("plain") {
		return r.followSession(ctx, session)
	}
	return r.watchSession(ctx, session)
}

// followSession prints stage transitions as plain lines until the run
// reaches a terminal stage. Useful when stdout is piped or logged.
func (r *Runner) followSession(ctx context.Context, session *workflow.Session) error {
	if err := session.Sync(ctx); err != nil {
		return fmt.Errorf("failed to start synchronization: %w", err)
	}
	defer session.StopSync()

	updates := make(chan workflow.State, 64)
	unsub := session.Store().Subscribe(func(state workflow.State) {
		select {
		case updates <- state:
		default:
		}
	})
	defer unsub()

	// The subscription only fires on mutation; seed with the current state.
	updates <- session.Store().Snapshot()

	var lastStage api.Stage
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state := <-updates:
			if state.Stage != "" && state.Stage != lastStage {
				lastStage = state.Stage
				if err := r.writePlain("%s  %s\n", time.Now().Format("15:04:05"), state.Stage); err != nil {
					return err
				}
			}
			if !state.Stage.Terminal() {
				continue
			}
			if state.ErrorMessage != "" {
				return fmt.Errorf("run failed: %s", state.ErrorMessage)
			}
			if state.Playlist != nil {
				return r.writePlain("playlist ready: %s (%d tracks) %s\n",
					state.Playlist.Name, state.Playlist.TrackCount, state.Playlist.URL)
			}
			return nil
		}
	}
}

// watchSession runs the TUI over a bound session until the user quits.
func (r *Runner) watchSession(ctx context.Context, session *workflow.Session) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/moodlist-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := session.Sync(ctx); err != nil {
		return fmt.Errorf("failed to start synchronization: %w", err)
	}
	defer session.StopSync()
	defer session.Editor().Close()

	model := ui.NewModel(ctx, session, r.client, r.config.Sync.SearchDebounce())
	defer model.Close()

	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// Status prints the current workflow status for a session.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	status, err := r.client.Status(reqCtx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	if err := r.writePlain("session: %s\nstage:   %s\nstatus:  %s\n", status.SessionID, status.CurrentStep, status.Status); err != nil {
		return err
	}
	if status.AwaitingInput {
		if err := r.writePlain("awaiting your review; edit with: moodlist edit --session %s\n", status.SessionID); err != nil {
			return err
		}
	}
	if status.Error != "" {
		return r.writePlain("error:   %s\n", status.Error)
	}
	return nil
}

// Results prints or exports the recommendation results for a session.
func (r *Runner) Results(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	session := r.newSession()

	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	if err := session.Load(reqCtx, sessionID); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	state := session.Store().Snapshot()
	results := &api.ResultsResponse{Recommendations: state.Recommendations, Playlist: state.Playlist}

	var (
		output []byte
		err    error
	)
	switch format := cmd.String("format"); format {
	case "json":
		return r.writeJSON(results, true)
	case "csv":
		output, err = formatter.ExportToCSV(results)
	case "markdown", "md":
		output, err = formatter.ExportToMarkdown(results, state.MoodPrompt)
	case "text", "":
		output = formatter.ExportToText(results)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := os.WriteFile(path, output, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return r.writePlain("wrote %s\n", path)
	}
	return r.writePlain("%s", output)
}

// Cancel stops a running workflow.
func (r *Runner) Cancel(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	if err := r.client.Cancel(reqCtx, sessionID); err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}

	// Drop the entry from the local active-jobs list as well.
	if db, repo, err := r.openJobs(); err == nil {
		defer db.Close()
		if err := repo.Remove(sessionID); err != nil {
			r.logger.Warn("failed to remove active job", "err", err)
		}
	}

	return r.writePlain("cancelled %s\n", sessionID)
}

// SetLogger swaps the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

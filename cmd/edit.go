package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
	"github.com/dennisjooo/moodlist/internal/workflow"
	"github.com/urfave/cli/v3"
)

// editSession loads the session named by --session and checks that it is
// paused for user input; edits outside that stage are rejected up front.
func (r *Runner) editSession(ctx context.Context, cmd *cli.Command) (*workflow.Session, error) {
	session := r.newSession()
	if err := session.Load(ctx, cmd.String("session")); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	state := session.Store().Snapshot()
	if !state.Stage.AwaitingInput() {
		return nil, fmt.Errorf("%w: session is in stage %s", shared.ErrNotAwaitingInput, state.Stage)
	}
	return session, nil
}

// finishEdit forces the pending reconciliation fetch and prints the track
// order that survives it.
func (r *Runner) finishEdit(session *workflow.Session) error {
	session.Editor().Flush()
	session.Editor().Close()

	for i, track := range session.Store().Snapshot().Recommendations {
		if err := r.writePlain("%2d. %s — %s\n", i+1, track.Name, strings.Join(track.Artists, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// EditReorder moves a track to a new position.
func (r *Runner) EditReorder(ctx context.Context, cmd *cli.Command) error {
	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	session, err := r.editSession(reqCtx, cmd)
	if err != nil {
		return err
	}

	if err := session.Editor().Reorder(reqCtx, cmd.String("track"), cmd.Int("to")); err != nil {
		return fmt.Errorf("reorder rejected: %w", err)
	}
	return r.finishEdit(session)
}

// EditRemove removes a track from the recommendation list.
func (r *Runner) EditRemove(ctx context.Context, cmd *cli.Command) error {
	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	session, err := r.editSession(reqCtx, cmd)
	if err != nil {
		return err
	}

	if err := session.Editor().Remove(reqCtx, cmd.String("track")); err != nil {
		return fmt.Errorf("remove rejected: %w", err)
	}
	return r.finishEdit(session)
}

// EditAdd appends a track by provider URI.
func (r *Runner) EditAdd(ctx context.Context, cmd *cli.Command) error {
	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	session, err := r.editSession(reqCtx, cmd)
	if err != nil {
		return err
	}

	info := api.Track{
		Name:        cmd.String("name"),
		ProviderURI: cmd.String("uri"),
	}
	if artists := cmd.String("artist"); artists != "" {
		for _, artist := range strings.Split(artists, ",") {
			info.Artists = append(info.Artists, strings.TrimSpace(artist))
		}
	}

	if err := session.Editor().Add(reqCtx, cmd.String("uri"), info); err != nil {
		return fmt.Errorf("add rejected: %w", err)
	}
	return r.finishEdit(session)
}

// Search looks up candidate tracks for the add flow.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("interactive") {
		return r.searchInteractive(ctx, cmd.Int("limit"))
	}

	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	tracks, err := r.client.Search(reqCtx, query, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	if len(tracks) == 0 {
		return r.writePlain("no matches for %q\n", query)
	}
	for _, track := range tracks {
		if err := r.writePlain("%s\t%s — %s\n", track.ProviderURI, track.Name, strings.Join(track.Artists, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// searchInteractive reads queries line by line from stdin, routing them
// through the debounced searcher so rapid retyping cancels stale lookups.
func (r *Runner) searchInteractive(ctx context.Context, limit int) error {
	snapshots := make(chan workflow.SearchSnapshot, 16)
	searcher := workflow.NewSearcher(r.client, r.config.Sync.SearchDebounce(), limit, r.logger, func(snapshot workflow.SearchSnapshot) {
		select {
		case snapshots <- snapshot:
		default:
		}
	})
	defer searcher.Close()

	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			select {
			case <-quit:
				return
			case snapshot := <-snapshots:
				switch {
				case snapshot.Phase != workflow.SearchIdle:
					// Still debouncing or in flight.
				case snapshot.Err != "":
					r.writePlain("search error: %s\n", snapshot.Err)
				case snapshot.Query == "":
				case len(snapshot.Results) == 0:
					r.writePlain("no matches for %q\n", snapshot.Query)
				default:
					for _, track := range snapshot.Results {
						r.writePlain("%s\t%s — %s\n", track.ProviderURI, track.Name, strings.Join(track.Artists, ", "))
					}
				}
			}
		}
	}()

	if err := r.writePlain("type to search, empty line to clear, ctrl-d to quit\n"); err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		searcher.SetQuery(strings.TrimSpace(scanner.Text()))
	}
	return scanner.Err()
}

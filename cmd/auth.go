package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dennisjooo/moodlist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthStatus prints the current identity, serving the cache instantly and
// re-validating in the background when possible.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	state := r.manager.Bootstrap(reqCtx)

	if !state.Authenticated || state.User == nil {
		return r.writePlain("not authenticated; run: moodlist auth login\n")
	}

	label := "validated"
	if !state.Validated {
		label = "cached, re-validating"
	}
	name := state.User.DisplayName
	if name == "" {
		name = state.User.Email
	}
	return r.writePlain("signed in as %s (%s)\n", name, label)
}

// AuthLogin establishes a session from provider tokens and verifies it.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	accessToken := cmd.String("access-token")
	if accessToken == "" {
		return fmt.Errorf("%w: access token", shared.ErrMissingArgument)
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: cmd.String("refresh-token"),
		Expiry:       time.Now().Add(time.Hour),
	}

	reqCtx, cancel := r.requestCtx(ctx)
	defer cancel()

	if err := r.manager.Login(reqCtx, token); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	state := r.manager.Current()
	if state.User != nil {
		return r.writePlain("signed in as %s\n", state.User.DisplayName)
	}
	return r.writePlain("signed in\n")
}

// AuthLogout clears the local identity and ends the session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.manager.Logout(ctx)
	return r.writePlain("signed out\n")
}

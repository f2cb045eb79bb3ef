package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/bus"
	"github.com/dennisjooo/moodlist/internal/identity"
	"github.com/dennisjooo/moodlist/internal/repositories"
	"github.com/dennisjooo/moodlist/internal/shared"
	"github.com/dennisjooo/moodlist/internal/workflow"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	client   *api.JobClient
	idClient *api.IdentityClient
	manager  *identity.Manager
	bus      *bus.Dispatcher
	logger   *log.Logger
	output   io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Client     *api.JobClient
	IDClient   *api.IdentityClient
	Manager    *identity.Manager
	Bus        *bus.Dispatcher
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
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
	if opts.HTTPClient == nil {
		// No client-level timeout: the SSE stream is a long-lived body read.
		// Unary calls get per-request context deadlines instead.
		opts.HTTPClient = &http.Client{}
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewDispatcher()
	}
	if opts.Client == nil {
		opts.Client = api.NewJobClient(opts.Config.API.BaseURL, opts.HTTPClient)
	}
	if opts.IDClient == nil {
		opts.IDClient = api.NewIdentityClient(opts.Config.API.BaseURL, opts.HTTPClient)
	}
	if opts.Manager == nil {
		cache := identity.NewCache(
			expandPath(opts.Config.Identity.CachePath),
			opts.Config.Identity.CacheKey,
			opts.Config.Identity.CacheTTL(),
		)
		opts.Manager = identity.NewManager(opts.IDClient, cache, opts.Bus, opts.Logger)
	}

	r := &Runner{
		config:   opts.Config,
		client:   opts.Client,
		idClient: opts.IDClient,
		manager:  opts.Manager,
		bus:      opts.Bus,
		logger:   opts.Logger,
		output:   opts.Output,
	}
	r.trackActiveJobs()
	return r
}

// newSession builds a workflow session from the configured tuning values.
func (r *Runner) newSession() *workflow.Session {
	sync := r.config.Sync
	return workflow.NewSession(workflow.Options{
		Client:        r.client,
		Bus:           r.bus,
		Logger:        r.logger,
		StreamEnabled: r.config.API.StreamEnabled,
		AllowPolling:  true,
		Backoff:       workflow.Backoff{Base: sync.BackoffBase(), Cap: sync.BackoffCap()},
		MaxReconnects: sync.MaxReconnects,
		EditDebounce:  sync.EditDebounce(),
		PollActive:    sync.PollActive(),
		PollAwaiting:  sync.PollAwaiting(),
		PollRate:      sync.PollRatePerSecond,
	})
}

// requestCtx derives a per-call deadline for unary API requests.
func (r *Runner) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.config.API.Timeout()
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// openJobs opens the active-jobs database. The caller closes the handle.
func (r *Runner) openJobs() (*sql.DB, *repositories.ActiveJobRepository, error) {
	db, err := shared.NewDatabase(expandPath(r.config.Database.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, repositories.NewActiveJobRepository(db), nil
}

// trackActiveJobs mirrors workflow lifecycle events into the active-jobs
// list. Persistence failures are logged, never surfaced; the list is a
// convenience, not a source of truth.
func (r *Runner) trackActiveJobs() {
	r.bus.Subscribe(bus.TopicWorkflowStarted, func(event bus.Event) {
		started, ok := event.Payload.(bus.WorkflowStarted)
		if !ok {
			return
		}
		db, repo, err := r.openJobs()
		if err != nil {
			r.logger.Debug("active-jobs tracking unavailable", "err", err)
			return
		}
		defer db.Close()
		if err := repo.Record(repositories.ActiveJob{
			SessionID:  started.SessionID,
			Stage:      api.StagePending,
			MoodPrompt: started.MoodPrompt,
		}); err != nil {
			r.logger.Warn("failed to record active job", "err", err)
		}
	})

	r.bus.Subscribe(bus.TopicWorkflowFinished, func(event bus.Event) {
		finished, ok := event.Payload.(bus.WorkflowFinished)
		if !ok {
			return
		}
		db, repo, err := r.openJobs()
		if err != nil {
			r.logger.Debug("active-jobs tracking unavailable", "err", err)
			return
		}
		defer db.Close()
		if err := repo.UpdateStage(finished.SessionID, finished.Stage); err != nil {
			r.logger.Warn("failed to update active job", "err", err)
		}
	})
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

// expandPath resolves a leading ~/ against the user's home directory.
func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

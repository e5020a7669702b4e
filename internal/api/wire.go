package api

import (
	"errors"
	"log/slog"

	"reelkeep/internal/config"
	"reelkeep/internal/emby"
	"reelkeep/internal/logging"
	"reelkeep/internal/services"
	"reelkeep/internal/tasks"
	"reelkeep/internal/tmdb"
)

// NewServiceFromConfig builds the media server and provider clients from cfg
// and wires them with st into a Service. Missing credentials leave the
// corresponding client unset; the operations needing it then report a
// configuration error instead of failing startup.
func NewServiceFromConfig(cfg *config.Config, st Store, logger *slog.Logger) (*Service, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("service requires config and store")
	}
	deps := Deps{
		Store:  st,
		Runner: tasks.NewRunner(cfg.LockPath(), logger),
		Reconcile: ReconcileConfig{
			BatchSize:   cfg.Reconcile.BatchSize,
			Concurrency: cfg.Reconcile.Concurrency,
			LibraryIDs:  cfg.Emby.Libraries,
		},
		Logger: logger,
	}

	server, err := emby.New(cfg.Emby.URL, cfg.Emby.APIKey, cfg.Emby.UserID, cfg.EmbyTimeout(),
		emby.WithLogger(logger))
	switch {
	case err == nil:
		deps.Server = server
	case errors.Is(err, services.ErrConfiguration):
		logging.WarnWithContext(logger, "emby not configured", "config_incomplete",
			logging.String(logging.FieldImpact, "reconcile and cleanup execution unavailable"),
			logging.String(logging.FieldErrorHint, "set emby.url and emby.api_key"))
	default:
		return nil, err
	}

	provider, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithRateLimit(cfg.TMDB.RequestsPerSecond))
	switch {
	case err == nil:
		deps.Provider = provider
	case errors.Is(err, services.ErrConfiguration):
		logging.WarnWithContext(logger, "tmdb not configured", "config_incomplete",
			logging.String(logging.FieldImpact, "reconcile unavailable"),
			logging.String(logging.FieldErrorHint, "set tmdb.api_key or TMDB_API_KEY"))
	default:
		return nil, err
	}

	return NewService(deps), nil
}

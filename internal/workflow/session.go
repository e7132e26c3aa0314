package workflow

import (
	"context"
	"errors"
	"log/slog"

	"erpfetch/internal/handlers"
	"erpfetch/internal/logging"
	"erpfetch/internal/recovery"
	"erpfetch/internal/services"
)

// login authenticates the session, restarting the browser with a doubling
// backoff each time a browser exhausts its login attempts.
func (r *Runner) login(ctx context.Context, logger *slog.Logger) error {
	err := r.deps.Session.Login(ctx)
	backoff := r.cfg.Session.RestartBackoff()
	for restart := 1; err != nil && errors.Is(err, services.ErrRetriesExhausted) && restart <= r.cfg.Session.MaxRestarts; restart++ {
		logging.WarnWithContext(logger, "login attempts exhausted; restarting browser", "session_escalation",
			logging.Int("restart", restart),
			logging.Int("max_restarts", r.cfg.Session.MaxRestarts),
			logging.Duration("backoff", backoff),
			logging.Error(err),
			logging.ErrorHint("check ERP availability and credentials"),
			logging.Impact("the run continues once a fresh browser logs in"),
		)
		if serr := r.sleep(ctx, backoff); serr != nil {
			return serr
		}
		backoff *= 2
		if rerr := r.deps.Session.Restart(ctx); rerr != nil {
			return rerr
		}
		err = r.deps.Session.Login(ctx)
	}
	if err != nil {
		return err
	}
	snap := r.deps.Session.Snapshot()
	logger.Info("session ready",
		logging.Int("failed_logins", snap.AttemptCount),
		logging.Int("restarts", snap.Restarts),
		logging.EventType("session_ready"),
	)
	return nil
}

func (r *Runner) newHandler(logger *slog.Logger) (*handlers.Handler, error) {
	driver, err := r.deps.Session.Driver()
	if err != nil {
		return nil, err
	}
	rec := recovery.New(driver, r.deps.Catalog, r.cfg.Timeouts.Element(), r.cfg.Timeouts.PageLoad(), logger)
	return handlers.New(driver, rec, r.deps.Catalog, r.deps.Ledger, handlers.OptionsFromConfig(r.cfg), logger), nil
}

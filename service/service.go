package service

import (
	"context"
	"elmah/config"
	"log/slog"
)

// Services is the service container.
type Services struct {
	Logs      *Factory
	Errors    *ErrorService
	Retention *Retention
}

// InitServices builds the services described by cfg and opens every store.
func InitServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	stores, err := cfg.StoreConfigs()
	if err != nil {
		return nil, err
	}

	logs, err := NewFactory(stores, logger)
	if err != nil {
		return nil, err
	}
	if err := logs.OpenAll(ctx); err != nil {
		logs.Close()
		return nil, err
	}

	svc := &Services{
		Logs:   logs,
		Errors: NewErrorService(logs, logger),
	}

	if cfg.Retention.Days > 0 {
		svc.Retention, err = NewRetention(svc.Errors, cfg.Retention.Days, cfg.Retention.Schedule, logger)
		if err != nil {
			logs.Close()
			return nil, err
		}
	}
	return svc, nil
}

// Close stops background jobs and releases stores.
func (s *Services) Close() error {
	if s.Retention != nil {
		s.Retention.Stop()
	}
	return s.Logs.Close()
}

package service

import (
	"context"
	"elmah/codec"
	"elmah/core"
	"elmah/models"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const exportPageSize = 100

var ErrPurgeUnsupported = errors.New("store does not support purging")

// ErrorService handles error log business logic for every configured application.
type ErrorService struct {
	logs   *Factory
	logger *slog.Logger
}

// NewErrorService constructs an error service over logs.
func NewErrorService(logs *Factory, logger *slog.Logger) *ErrorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorService{logs: logs, logger: logger}
}

// Applications lists the configured applications, default first.
func (s *ErrorService) Applications() []string {
	return s.logs.Applications()
}

// Store returns the log of app; an empty app selects the default.
func (s *ErrorService) Store(ctx context.Context, app string) (core.ErrorLog, error) {
	if app == "" {
		app = s.logs.DefaultApplication()
	}
	return s.logs.Get(ctx, app)
}

// Log writes e to the log of app.
func (s *ErrorService) Log(ctx context.Context, app string, e *models.Error) (string, error) {
	log, err := s.Store(ctx, app)
	if err != nil {
		return "", err
	}

	id, err := log.Log(ctx, e)
	if err != nil {
		s.logger.Error("failed to log error", "application", log.ApplicationName(), "store", log.Name(), "error", err)
		return "", err
	}

	core.RecordLogged(log.Name())
	s.logger.Info("error logged",
		"application", log.ApplicationName(),
		"id", id,
		"type", e.Type(),
		"status", e.StatusCode(),
	)
	return id, nil
}

// LogException captures err together with an optional request and logs it.
func (s *ErrorService) LogException(ctx context.Context, app string, err error, r *http.Request, enrichers ...models.Enricher) (string, error) {
	log, storeErr := s.Store(ctx, app)
	if storeErr != nil {
		return "", storeErr
	}
	return s.Log(ctx, log.ApplicationName(), models.FromException(log.ApplicationName(), err, r, enrichers...))
}

// GetError returns one entry, or nil when id is unknown.
func (s *ErrorService) GetError(ctx context.Context, app, id string) (*models.ErrorLogEntry, error) {
	log, err := s.Store(ctx, app)
	if err != nil {
		return nil, err
	}
	return log.GetError(ctx, id)
}

// GetErrors returns one page of entries and the total count.
func (s *ErrorService) GetErrors(ctx context.Context, app string, pageIndex, pageSize int) ([]*models.ErrorLogEntry, int, error) {
	log, err := s.Store(ctx, app)
	if err != nil {
		return nil, 0, err
	}
	return log.GetErrors(ctx, pageIndex, pageSize)
}

// Export streams every entry of app to w as CSV and returns the number of rows written.
func (s *ErrorService) Export(ctx context.Context, app string, w io.Writer, baseURL string) (int, error) {
	log, err := s.Store(ctx, app)
	if err != nil {
		return 0, err
	}

	csvw := codec.NewCSVWriter(w, baseURL)
	written := 0
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		entries, total, err := log.GetErrors(ctx, page, exportPageSize)
		if err != nil {
			return written, err
		}
		if err := csvw.Write(entries); err != nil {
			return written, err
		}
		written += len(entries)
		if len(entries) == 0 || (page+1)*exportPageSize >= total {
			break
		}
	}
	return written, csvw.Flush()
}

// Purge removes entries of app logged before cutoff.
func (s *ErrorService) Purge(ctx context.Context, app string, cutoff time.Time) (int64, error) {
	log, err := s.Store(ctx, app)
	if err != nil {
		return 0, err
	}
	purger, ok := log.(core.Purger)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPurgeUnsupported, log.Name())
	}

	removed, err := purger.Purge(ctx, cutoff)
	if err != nil {
		return removed, err
	}
	s.logger.Info("purged old errors", "application", log.ApplicationName(), "store", log.Name(), "removed", removed, "cutoff", cutoff)
	return removed, nil
}

// PurgeAll purges every application whose store supports it, concurrently.
func (s *ErrorService) PurgeAll(ctx context.Context, cutoff time.Time) (map[string]int64, error) {
	var mu sync.Mutex
	removed := make(map[string]int64)

	g, ctx := errgroup.WithContext(ctx)
	for _, app := range s.Applications() {
		app := app
		g.Go(func() error {
			n, err := s.Purge(ctx, app, cutoff)
			if errors.Is(err, ErrPurgeUnsupported) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("purge %q: %w", app, err)
			}
			mu.Lock()
			removed[app] = n
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return removed, err
}

// Health probes every application's store. Stores without a database report healthy.
func (s *ErrorService) Health(ctx context.Context) map[string]bool {
	health := make(map[string]bool)
	for _, app := range s.Applications() {
		log, err := s.logs.Get(ctx, app)
		if err != nil {
			health[app] = false
			continue
		}
		if p, ok := log.(core.Pinger); ok {
			health[app] = p.Ping(ctx)
			continue
		}
		health[app] = true
	}
	return health
}

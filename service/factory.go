package service

import (
	"context"
	"elmah/config"
	"elmah/core"
	"elmah/database"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"
)

var ErrUnknownApplication = errors.New("unknown application")

// Factory builds error logs from store configurations keyed by type tag and
// caches one instance per application.
type Factory struct {
	logger *slog.Logger

	mu      sync.Mutex
	order   []string
	configs map[string]config.StoreConfig
	logs    map[string]core.ErrorLog
	buffers map[string]*core.MemoryBuffer
	gormDBs map[string]*gorm.DB
}

// NewFactory indexes configs by application name. The first entry is the default.
func NewFactory(configs []config.StoreConfig, logger *slog.Logger) (*Factory, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no store configured", core.ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := &Factory{
		logger:  logger,
		configs: make(map[string]config.StoreConfig, len(configs)),
		logs:    make(map[string]core.ErrorLog),
		buffers: make(map[string]*core.MemoryBuffer),
		gormDBs: make(map[string]*gorm.DB),
	}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := f.configs[cfg.ApplicationName]; dup {
			return nil, fmt.Errorf("%w: application %q configured twice", core.ErrConfiguration, cfg.ApplicationName)
		}
		f.configs[cfg.ApplicationName] = cfg
		f.order = append(f.order, cfg.ApplicationName)
	}
	if err := config.CheckDistinctDirs(configs); err != nil {
		return nil, err
	}
	return f, nil
}

// Applications lists configured application names, default first.
func (f *Factory) Applications() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// DefaultApplication returns the application of the first configuration.
func (f *Factory) DefaultApplication() string {
	return f.order[0]
}

// Get returns the cached log for app, opening it on first use.
func (f *Factory) Get(ctx context.Context, app string) (core.ErrorLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if log, ok := f.logs[app]; ok {
		return log, nil
	}
	cfg, ok := f.configs[app]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownApplication, app)
	}

	log, err := f.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f.logs[app] = log
	f.logger.Info("error log opened", "application", app, "store", log.Name(), "type", cfg.Type)
	return log, nil
}

// OpenAll opens every configured log so configuration mistakes surface at start-up.
func (f *Factory) OpenAll(ctx context.Context) error {
	for _, app := range f.order {
		if _, err := f.Get(ctx, app); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory) open(ctx context.Context, cfg config.StoreConfig) (core.ErrorLog, error) {
	switch cfg.Type {
	case config.StoreMemory:
		buffer, ok := f.buffers[cfg.ApplicationName]
		if !ok {
			var err error
			buffer, err = core.NewMemoryBuffer(cfg.Size, f.logger)
			if err != nil {
				return nil, err
			}
			f.buffers[cfg.ApplicationName] = buffer
		}
		return core.NewMemoryErrorLogWithBuffer(cfg.ApplicationName, buffer)

	case config.StoreXMLFile:
		return core.NewXMLFileErrorLog(cfg.ApplicationName, cfg.LogPath, f.logger)

	case config.StoreSQLite:
		db, ok := f.gormDBs[cfg.ConnectionString]
		if !ok {
			var err error
			db, err = database.OpenSQLite(cfg.ConnectionString, cfg.SQLite, f.logger)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
			}
			f.gormDBs[cfg.ConnectionString] = db
		}
		return database.NewGormErrorLogWithDB(cfg.ApplicationName, db, f.logger)

	case config.StoreSQLite3, config.StorePostgres:
		return database.NewSQLErrorLog(ctx, cfg.Type, cfg.ApplicationName, cfg.ConnectionString, cfg.SQLite, f.logger)

	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedStore, cfg.Type)
	}
}

// Close releases every opened log and shared database.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for app, log := range f.logs {
		if c, ok := log.(core.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %q: %w", app, err))
			}
		}
	}
	for dsn, db := range f.gormDBs {
		if err := database.CloseDB(db); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", dsn, err))
		}
	}
	f.logs = make(map[string]core.ErrorLog)
	f.gormDBs = make(map[string]*gorm.DB)
	return errors.Join(errs...)
}

package core

import (
	"context"
	"elmah/models"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const (
	DefaultMemorySize = 15
	MaxMemorySize     = 500
)

type memoryEntry struct {
	app string
	id  string
	seq int64
	err *models.Error
}

// MemoryBuffer is a bounded ring of entries. Once full, each write evicts the oldest.
// One buffer may back several stores, each seeing only its own application.
type MemoryBuffer struct {
	mu      sync.RWMutex
	entries []memoryEntry
	start   int
	count   int
	seq     int64
	logger  *slog.Logger
}

// NewMemoryBuffer returns a buffer holding at most size entries.
// Zero selects DefaultMemorySize.
func NewMemoryBuffer(size int, logger *slog.Logger) (*MemoryBuffer, error) {
	if size < 0 || size > MaxMemorySize {
		return nil, fmt.Errorf("%w: memory size %d outside [0, %d]", ErrConfiguration, size, MaxMemorySize)
	}
	if size == 0 {
		size = DefaultMemorySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBuffer{
		entries: make([]memoryEntry, size),
		logger:  logger,
	}, nil
}

// Size returns the buffer capacity.
func (b *MemoryBuffer) Size() int {
	return len(b.entries)
}

func (b *MemoryBuffer) add(app, id string, e *models.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	entry := memoryEntry{app: app, id: id, seq: b.seq, err: e}

	if b.count == len(b.entries) {
		old := b.entries[b.start]
		b.entries[b.start] = entry
		b.start = (b.start + 1) % len(b.entries)
		b.logger.Debug("memory error log full, evicted oldest entry", "application", old.app, "id", old.id)
		return
	}

	b.entries[(b.start+b.count)%len(b.entries)] = entry
	b.count++
}

func (b *MemoryBuffer) find(app, id string) (memoryEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := 0; i < b.count; i++ {
		entry := b.entries[(b.start+i)%len(b.entries)]
		if entry.app == app && entry.id == id {
			return entry, true
		}
	}
	return memoryEntry{}, false
}

// snapshot returns the entries of app ordered by time then sequence, newest first.
func (b *MemoryBuffer) snapshot(app string) []memoryEntry {
	b.mu.RLock()
	out := make([]memoryEntry, 0, b.count)
	for i := b.count - 1; i >= 0; i-- {
		entry := b.entries[(b.start+i)%len(b.entries)]
		if entry.app == app {
			out = append(out, entry)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].err.Time().After(out[j].err.Time())
	})
	return out
}

// MemoryErrorLog keeps errors in process memory only.
type MemoryErrorLog struct {
	app    string
	buffer *MemoryBuffer
}

// NewMemoryErrorLog returns a store with a private buffer of the given size.
func NewMemoryErrorLog(applicationName string, size int, logger *slog.Logger) (*MemoryErrorLog, error) {
	buffer, err := NewMemoryBuffer(size, logger)
	if err != nil {
		return nil, err
	}
	return NewMemoryErrorLogWithBuffer(applicationName, buffer)
}

// NewMemoryErrorLogWithBuffer returns a store writing into a shared buffer.
func NewMemoryErrorLogWithBuffer(applicationName string, buffer *MemoryBuffer) (*MemoryErrorLog, error) {
	if err := ValidateApplicationName(applicationName); err != nil {
		return nil, err
	}
	if buffer == nil {
		return nil, fmt.Errorf("%w: memory buffer is nil", ErrConfiguration)
	}
	return &MemoryErrorLog{app: applicationName, buffer: buffer}, nil
}

func (l *MemoryErrorLog) Name() string            { return "In-Memory Error Log" }
func (l *MemoryErrorLog) ApplicationName() string { return l.app }

// Log stores e and returns its id. It never fails on a full buffer.
func (l *MemoryErrorLog) Log(ctx context.Context, e *models.Error) (string, error) {
	if e == nil {
		return "", ErrNilError
	}
	id := NewID()
	l.buffer.add(l.app, id, OwnedBy(e, l.app))
	return id, nil
}

func (l *MemoryErrorLog) GetError(ctx context.Context, id string) (*models.ErrorLogEntry, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	entry, ok := l.buffer.find(l.app, id)
	if !ok {
		return nil, nil
	}
	return models.NewErrorLogEntry(l, entry.id, entry.err), nil
}

func (l *MemoryErrorLog) GetErrors(ctx context.Context, pageIndex, pageSize int) ([]*models.ErrorLogEntry, int, error) {
	if err := ValidatePage(pageIndex, pageSize); err != nil {
		return nil, 0, err
	}

	all := l.buffer.snapshot(l.app)
	start, end := PageBounds(len(all), pageIndex, pageSize)

	entries := make([]*models.ErrorLogEntry, 0, end-start)
	for _, entry := range all[start:end] {
		entries = append(entries, models.NewErrorLogEntry(l, entry.id, entry.err))
	}
	return entries, len(all), nil
}

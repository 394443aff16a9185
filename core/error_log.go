package core

import (
	"context"
	"elmah/models"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxApplicationNameLength bounds the application name of every store.
const MaxApplicationNameLength = 60

// ErrorLog is a store of error records for one application.
// Implementations are safe for concurrent use.
type ErrorLog interface {
	// Name describes the backend, e.g. "In-Memory Error Log".
	Name() string
	ApplicationName() string

	// Log persists e and returns its new id.
	Log(ctx context.Context, e *models.Error) (string, error)

	// GetError returns the entry with id, or (nil, nil) when there is none.
	GetError(ctx context.Context, id string) (*models.ErrorLogEntry, error)

	// GetErrors returns one page of entries, newest first, and the total count.
	// A pageSize of zero only counts.
	GetErrors(ctx context.Context, pageIndex, pageSize int) ([]*models.ErrorLogEntry, int, error)
}

// Purger is implemented by stores able to drop old entries.
type Purger interface {
	// Purge removes entries logged before cutoff and reports how many went.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Closer is implemented by stores holding resources.
type Closer interface {
	Close() error
}

// Pinger is implemented by stores backed by a remote or shared database.
type Pinger interface {
	Ping(ctx context.Context) bool
}

// NewID returns a fresh identifier in canonical form.
func NewID() string {
	return uuid.NewString()
}

// ParseID accepts hyphenated or 32-digit identifiers and returns the canonical form.
func ParseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return u.String(), nil
}

// ValidatePage rejects negative paging arguments.
func ValidatePage(pageIndex, pageSize int) error {
	if pageIndex < 0 {
		return fmt.Errorf("%w: pageIndex %d", ErrInvalidArgument, pageIndex)
	}
	if pageSize < 0 {
		return fmt.Errorf("%w: pageSize %d", ErrInvalidArgument, pageSize)
	}
	return nil
}

// PageBounds returns the half-open slice range of the requested page among total items.
func PageBounds(total, pageIndex, pageSize int) (start, end int) {
	if pageSize == 0 || pageIndex > total/pageSize {
		return total, total
	}
	start = pageIndex * pageSize
	if start > total {
		start = total
	}
	if pageSize > total-start {
		return start, total
	}
	return start, start + pageSize
}

// PageOffset returns the row offset of a page. ok is false when the offset
// cannot be represented, in which case the page is necessarily empty.
func PageOffset(pageIndex, pageSize int) (offset int64, ok bool) {
	if pageSize == 0 {
		return 0, true
	}
	if int64(pageIndex) > math.MaxInt64/int64(pageSize) {
		return 0, false
	}
	return int64(pageIndex) * int64(pageSize), true
}

// ValidateApplicationName enforces the application name limit.
func ValidateApplicationName(name string) error {
	if n := len([]rune(name)); n > MaxApplicationNameLength {
		return fmt.Errorf("%w: application name is %d characters, limit is %d", ErrConfiguration, n, MaxApplicationNameLength)
	}
	return nil
}

// OwnedBy returns e stamped with app when the record carries no application of its own.
func OwnedBy(e *models.Error, app string) *models.Error {
	if e.ApplicationName() == "" && app != "" {
		return e.WithApplicationName(app)
	}
	return e
}

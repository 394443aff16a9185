package models

// LogReference identifies the store an entry came from.
type LogReference interface {
	Name() string
	ApplicationName() string
}

// ErrorLogEntry is a stored error together with its store-assigned id.
type ErrorLogEntry struct {
	log LogReference
	id  string
	err *Error
}

// NewErrorLogEntry binds err to id within log.
func NewErrorLogEntry(log LogReference, id string, err *Error) *ErrorLogEntry {
	return &ErrorLogEntry{log: log, id: id, err: err}
}

// Log returns the store that produced the entry.
func (e *ErrorLogEntry) Log() LogReference { return e.log }

// ID returns the opaque identifier.
func (e *ErrorLogEntry) ID() string { return e.id }

// Error returns the stored record.
func (e *ErrorLogEntry) Error() *Error { return e.err }

package core

import "errors"

var (
	ErrInvalidID        = errors.New("invalid error id")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConfiguration    = errors.New("configuration error")
	ErrUnsupportedStore = errors.New("unsupported store type")
	ErrNilError         = errors.New("error record is nil")
)

// StoreError wraps a backend failure with the store and operation that hit it.
type StoreError struct {
	Op    string
	Store string
	Err   error
}

func (e *StoreError) Error() string {
	return e.Store + ": " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError, or returns nil when err is nil.
func NewStoreError(store, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Store: store, Err: err}
}

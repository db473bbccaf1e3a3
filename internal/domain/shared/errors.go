package shared

import "fmt"

// StorageError wraps a persistence failure with the ledger operation that
// hit it. The failed document is rolled back whole; other documents in the
// same batch are unaffected.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

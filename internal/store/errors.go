package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by DataAccessError when the addressed record does
// not exist.
var ErrNotFound = errors.New("record not found")

// DataAccessError reports a failed read or write against the store.
type DataAccessError struct {
	Op         string // "retrieve", "query", "create", "update", "delete", "batch", "label"
	RecordType string
	RecordID   string
	Err        error
}

func (e *DataAccessError) Error() string {
	switch {
	case e.RecordID != "":
		return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.RecordType, e.RecordID, e.Err)
	case e.RecordType != "":
		return fmt.Sprintf("store %s %s: %v", e.Op, e.RecordType, e.Err)
	default:
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// MetadataError reports an option code with no configured label.
type MetadataError struct {
	RecordType string
	Attribute  string
	Code       int64
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("no label for option %d on %s.%s", e.Code, e.RecordType, e.Attribute)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func dataErr(op, recordType, id string, err error) error {
	return &DataAccessError{Op: op, RecordType: recordType, RecordID: id, Err: err}
}

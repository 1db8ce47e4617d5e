package timeline

import (
	"errors"
	"fmt"
)

var (
	ErrTrackNotFound    = errors.New("track not found")
	ErrClipNotFound     = errors.New("clip not found")
	ErrKeyframeNotFound = errors.New("keyframe not found")
	ErrEffectNotFound   = errors.New("effect not found")
	ErrMarkerNotFound   = errors.New("marker not found")
	ErrLocked           = errors.New("locked")
	ErrInvalidKind      = errors.New("invalid track kind")
	ErrInvalidValue     = errors.New("invalid value")
	ErrTxnClosed        = errors.New("transaction closed")
)

// RefError reports an operation that addressed a missing or locked entity.
// It wraps one of the sentinel errors above.
type RefError struct {
	Op  string
	ID  string
	Err error
}

func (e *RefError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *RefError) Unwrap() error {
	return e.Err
}

func refErr(op, id string, err error) error {
	return &RefError{Op: op, ID: id, Err: err}
}

package inventory

import "fmt"

// Kind classifies inventory failures.
type Kind string

// Error kinds.
const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidQuantity   Kind = "INVALID_QUANTITY"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindInvalidRelease    Kind = "INVALID_RELEASE"
	KindInvalidCommit     Kind = "INVALID_COMMIT"
	KindStorage           Kind = "STORAGE_ERROR"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidQuantity   = &Error{Kind: KindInvalidQuantity}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInvalidRelease    = &Error{Kind: KindInvalidRelease}
	ErrInvalidCommit     = &Error{Kind: KindInvalidCommit}
	ErrStorage           = &Error{Kind: KindStorage}
)

// Error is returned by every Service operation.
//
// For InsufficientStock, Limit is the available quantity; for InvalidRelease and
// InvalidCommit it is the reserved quantity.
type Error struct {
	Kind      Kind
	Message   string
	Requested int
	Limit     int
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Validation reports whether the error is a rejected request rather than a failure.
func (e *Error) Validation() bool {
	switch e.Kind {
	case KindInvalidQuantity, KindInsufficientStock, KindInvalidRelease, KindInvalidCommit:
		return true
	}
	return false
}

func notFound() *Error {
	return &Error{Kind: KindNotFound, Message: "Inventory not found"}
}

func storageError(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

func invalidQuantity(msg string, requested int) *Error {
	return &Error{Kind: KindInvalidQuantity, Message: msg, Requested: requested}
}

// Package errs defines the error taxonomy shared by the sync core so callers
// can branch on failure class (retry a network error, surface an auth error
// to the user, treat an invariant error as a programming bug) without
// string-matching messages.
package errs

import "fmt"

// Kind classifies an error into one of the categories the rest of the
// system reacts to.
type Kind string

const (
	KindStorage   Kind = "storage"
	KindNetwork   Kind = "network"
	KindProtocol  Kind = "protocol"
	KindDecode    Kind = "decode"
	KindAuth      Kind = "auth"
	KindInvariant Kind = "invariant"
)

// Error wraps an underlying cause with a Kind, so errors.Is/As and %w
// unwrapping still work while giving handlers a stable Kind to switch on.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "crdt.apply_remote"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func new_(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Storage(op string, err error) *Error   { return new_(KindStorage, op, err) }
func Network(op string, err error) *Error   { return new_(KindNetwork, op, err) }
func Protocol(op string, err error) *Error  { return new_(KindProtocol, op, err) }
func Decode(op string, err error) *Error    { return new_(KindDecode, op, err) }
func Auth(op string, err error) *Error      { return new_(KindAuth, op, err) }
func Invariant(op string, err error) *Error { return new_(KindInvariant, op, err) }

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

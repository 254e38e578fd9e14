package identity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// Msg may include human-readable context; it never includes secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError reports a uniqueness/constraint conflict for a specific logical field.
// Field is a stable logical name: "email", "username", "external_account".
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports a missing row.
type NotFoundError struct {
	Op       string
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrNotFound)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.Resource)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError carries field-scoped messages, e.g.
// {"email": ["has already been taken"]}.
type ValidationError struct {
	Op     string
	Fields map[string][]string
}

// Add appends msg to field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field has a message.
func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

// FullMessages renders each message prefixed by its humanized field name,
// e.g. "Password confirmation doesn't match Password". Order is stable.
func (e *ValidationError) FullMessages() []string {
	if e.Empty() {
		return nil
	}
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.sortedFields() {
		for _, m := range e.Fields[f] {
			out = append(out, humanizeField(f)+" "+m)
		}
	}
	return out
}

func (e *ValidationError) Error() string {
	msg := strings.Join(e.FullMessages(), "; ")
	if e.Op == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidInput, msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrInvalidInput, msg)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// errOrNil returns e as an error only when it holds messages, so a typed nil
// never escapes as a non-nil error.
func (e *ValidationError) errOrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) sortedFields() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func humanizeField(f string) string {
	s := strings.ReplaceAll(f, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// InternalError wraps an unexpected infrastructure failure. It matches both
// ErrInternal and the underlying cause under errors.Is.
type InternalError struct {
	Op  string
	Err error
}

func (e InternalError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrInternal, e.Err)
}

func (e InternalError) Unwrap() []error { return []error{ErrInternal, e.Err} }

func internalErr(op string, err error) error {
	return InternalError{Op: op, Err: err}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err represents ErrNotFound (including NotFoundError).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsInvalidCredentials reports whether err represents ErrInvalidCredentials.
func IsInvalidCredentials(err error) bool { return errors.Is(err, ErrInvalidCredentials) }

// IsAccountLocked reports whether err represents ErrAccountLocked.
func IsAccountLocked(err error) bool { return errors.Is(err, ErrAccountLocked) }

// IsAccountSuspended reports whether err represents ErrAccountSuspended.
func IsAccountSuspended(err error) bool { return errors.Is(err, ErrAccountSuspended) }

// IsInternal reports whether err represents ErrInternal.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }

// AsValidation extracts a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

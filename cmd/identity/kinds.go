package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrAccountSuspended   = errors.New("account_suspended")
	ErrUsernameExists     = errors.New("username_exists")
	ErrInternal           = errors.New("internal")
)

// kindOrder is the precedence used by KindOf. ErrInternal comes first so an
// internal failure wrapping a storage error is never reported as an outcome.
var kindOrder = []error{
	ErrInternal,
	ErrInvalidCredentials,
	ErrAccountLocked,
	ErrAccountSuspended,
	ErrUsernameExists,
	ErrInvalidInput,
	ErrConflict,
	ErrNotFound,
}

// KindOf returns the sentinel kind carried by err. Errors that carry no known
// kind are reported as ErrInternal; a nil error yields nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kindOrder {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

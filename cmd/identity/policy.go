package identity

import (
	"errors"
	"fmt"

	"storefront/cmd/security/password"
)

// Password field messages.
const (
	msgPasswordGenerated    = "is generated and cannot be chosen"
	msgConfirmationMismatch = "doesn't match Password"
	msgBlank                = "can't be blank"
	msgTaken                = "has already been taken"
)

// ValidatePassword checks candidate against the default password policy of
// class. Shopper passwords must hold between 12 and 128 characters;
// administrator passwords are always generated, so any candidate is rejected.
func ValidatePassword(candidate string, class Class) error {
	return validatePassword(password.DefaultConfig().Policy, candidate, class)
}

func validatePassword(p password.Policy, candidate string, class Class) error {
	const op = "identity.ValidatePassword"

	ve := &ValidationError{Op: op}
	if class == ClassAdmin {
		ve.Add("password", msgPasswordGenerated)
		return ve
	}

	err := password.Config{Policy: p}.Validate(candidate)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, password.ErrPasswordTooShort):
		ve.Add("password", fmt.Sprintf("is too short (minimum is %d characters)", p.MinLength))
	case errors.Is(err, password.ErrPasswordTooLong):
		ve.Add("password", fmt.Sprintf("is too long (maximum is %d characters)", p.MaxLength))
	case errors.Is(err, password.ErrWeakPassword):
		ve.Add("password", "is too weak")
	default:
		ve.Add("password", "is invalid")
	}
	return ve
}

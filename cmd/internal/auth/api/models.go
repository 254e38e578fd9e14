package authapi

import "time"

type shopperCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type shopperSignInRequest struct {
	User shopperCredentials `json:"user"`
}

type adminCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminSignInRequest struct {
	Admin adminCredentials `json:"admin"`
}

type shopperRegistration struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Name                 string `json:"name"`
}

type registerRequest struct {
	User shopperRegistration `json:"user"`
}

type shopperResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type adminResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	MaxAgeSeconds int64 `json:"session_max_age_seconds"`
}

type shopperSignInResponse struct {
	shopperResponse
	sessionResponse
}

type adminSignInResponse struct {
	adminResponse
	sessionResponse
}

package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"storefront/cmd/identity"
)

// Authenticator is the identity core surface the HTTP adapter drives.
// *identity.Service satisfies it.
type Authenticator interface {
	SignInShopper(ctx context.Context, email, password string) (identity.Identity, error)
	SignInAdmin(ctx context.Context, username, password string) (identity.Identity, error)
	RegisterShopper(ctx context.Context, in identity.RegisterShopperInput) (identity.Identity, error)
	SessionPolicy(class identity.Class) identity.SessionPolicy
}

// Handler wires HTTP auth endpoints to the identity service.
// Session cookies are issued by the surrounding session layer; responses only
// carry the max-age it must apply.
type Handler struct {
	log  *slog.Logger
	cfg  Config
	auth Authenticator
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, auth Authenticator, cfg Config) (*Handler, error) {
	if auth == nil {
		return nil, errors.New("auth: nil authenticator")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{log: log, cfg: cfg, auth: auth}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /v1/shoppers", h.handleRegister)
	mux.HandleFunc("POST /v1/shoppers/sign_in", h.handleShopperSignIn)
	mux.HandleFunc("POST /v1/admin/sign_in", h.handleAdminSignIn)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	shopper, err := h.auth.RegisterShopper(r.Context(), identity.RegisterShopperInput{
		Email:                req.User.Email,
		Password:             req.User.Password,
		PasswordConfirmation: req.User.PasswordConfirmation,
		Name:                 req.User.Name,
	})
	if err != nil {
		h.writeServiceError(w, r, identity.ClassShopper, "auth.register.fail", err)
		return
	}

	writeJSON(w, http.StatusCreated, toShopperResponse(shopper))
}

func (h *Handler) handleShopperSignIn(w http.ResponseWriter, r *http.Request) {
	var req shopperSignInRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	shopper, err := h.auth.SignInShopper(r.Context(), req.User.Email, req.User.Password)
	if err != nil {
		h.writeServiceError(w, r, identity.ClassShopper, "auth.signin.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, shopperSignInResponse{
		shopperResponse: toShopperResponse(shopper),
		sessionResponse: toSessionResponse(h.auth.SessionPolicy(identity.ClassShopper)),
	})
}

func (h *Handler) handleAdminSignIn(w http.ResponseWriter, r *http.Request) {
	var req adminSignInRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	admin, err := h.auth.SignInAdmin(r.Context(), req.Admin.Username, req.Admin.Password)
	if err != nil {
		h.writeServiceError(w, r, identity.ClassAdmin, "auth.signin.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, adminSignInResponse{
		adminResponse:   toAdminResponse(admin),
		sessionResponse: toSessionResponse(h.auth.SessionPolicy(identity.ClassAdmin)),
	})
}

// writeServiceError maps identity error kinds onto status codes and the
// user-facing messages of the sign-in pages.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, class identity.Class, event string, err error) {
	if ve, ok := identity.AsValidation(err); ok && !identity.IsInternal(err) {
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Errors: ve.FullMessages(),
			Fields: ve.Fields,
		})
		return
	}

	switch identity.KindOf(err) {
	case identity.ErrInvalidCredentials, identity.ErrNotFound:
		writeError(w, http.StatusUnauthorized, "invalid_credentials", invalidCredentialsMessage(class))
	case identity.ErrAccountLocked:
		lock := h.auth.SessionPolicy(class).LockDuration
		writeError(w, http.StatusUnauthorized, "account_locked",
			"Your account is locked due to too many failed attempts. Please try again in "+humanizeDuration(lock)+".")
	case identity.ErrAccountSuspended:
		writeError(w, http.StatusUnauthorized, "account_suspended", "Your account has been suspended")
	case identity.ErrUsernameExists:
		writeError(w, http.StatusConflict, "username_exists", "username has already been taken")
	case identity.ErrInvalidInput:
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid request")
	default:
		ip := clientIP(r, h.cfg.TrustProxy)
		h.log.Error(event, "class", class.String(), "ip", ipString(ip), "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func invalidCredentialsMessage(class identity.Class) string {
	if class == identity.ClassAdmin {
		return "Invalid username or password"
	}
	return "Invalid email or password"
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// parseForwardedIP returns the left-most valid address of an X-Forwarded-For list.
func parseForwardedIP(raw string) net.IP {
	for _, part := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			return ip
		}
	}
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

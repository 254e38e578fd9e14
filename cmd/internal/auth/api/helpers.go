package authapi

import (
	"fmt"
	"time"

	"storefront/cmd/identity"
)

func toShopperResponse(id identity.Identity) shopperResponse {
	out := shopperResponse{
		ID:        id.ID,
		Email:     id.Identifier,
		CreatedAt: id.CreatedAt,
	}
	if id.Shopper != nil {
		out.Name = id.Shopper.Name
		out.EmailVerified = id.Shopper.EmailVerified
	}
	return out
}

func toAdminResponse(id identity.Identity) adminResponse {
	return adminResponse{
		ID:        id.ID,
		Username:  id.Identifier,
		CreatedAt: id.CreatedAt,
	}
}

func toSessionResponse(p identity.SessionPolicy) sessionResponse {
	return sessionResponse{MaxAgeSeconds: int64(p.MaxAge / time.Second)}
}

// humanizeDuration renders whole hours or minutes the way the sign-in page
// phrases them ("1 hour", "30 minutes"); other values fall back to Duration.String.
func humanizeDuration(d time.Duration) string {
	unit := func(n int64, word string) string {
		if n == 1 {
			return "1 " + word
		}
		return fmt.Sprintf("%d %ss", n, word)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return unit(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return unit(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

// Package policy holds the guards every workflow operation passes before it
// touches storage.
package policy

import (
	"nodebase/backend/internal/apperror"
	"nodebase/backend/internal/auth"
	"nodebase/backend/pkg/models"
)

var (
	errUnauthenticated = apperror.ErrUnauthenticated.WithMessage("authentication required")
	errPremium         = apperror.ErrForbidden.WithMessage("creating workflows requires a premium subscription")
)

// RequireAuthenticated rejects callers without a verified identity.
func RequireAuthenticated(id auth.Identity) error {
	if !id.Authenticated || id.CallerID == "" {
		return errUnauthenticated
	}
	return nil
}

// RequirePremium rejects callers whose tier is not premium. Authentication
// is checked first.
func RequirePremium(id auth.Identity) error {
	if err := RequireAuthenticated(id); err != nil {
		return err
	}
	if id.Tier != models.TierPremium {
		return errPremium
	}
	return nil
}

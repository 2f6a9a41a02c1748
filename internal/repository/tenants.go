package repository

import (
	"context"

	"github.com/google/uuid"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/pkg/models"
)

// GetTenantBySubject looks up the tenant provisioned for an OIDC subject.
func (s *PostgresStore) GetTenantBySubject(ctx context.Context, subject string) (*models.Tenant, error) {
	var t models.Tenant
	var tier string
	err := s.db.QueryRow(ctx,
		`SELECT id, subject, email, tier, created_at, updated_at FROM tenants WHERE subject = $1`, subject,
	).Scan(&t.ID, &t.Subject, &t.Email, &tier, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	t.Tier = models.Tier(tier)
	return &t, nil
}

// CreateTenant provisions a tenant. Two first requests racing for the same
// subject both end up with the single stored row.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	if tenant.Tier == "" {
		tenant.Tier = models.TierFree
	}

	var tier string
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, subject, email, tier) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (subject) DO UPDATE SET email = EXCLUDED.email, updated_at = now()
		 RETURNING id, tier, created_at, updated_at`,
		tenant.ID, tenant.Subject, tenant.Email, string(tenant.Tier),
	).Scan(&tenant.ID, &tier, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	tenant.Tier = models.Tier(tier)

	s.logger.Debug("tenant provisioned", "tenant_id", tenant.ID, "subject", tenant.Subject)
	return nil
}

// UpdateTenantTier changes a tenant's subscription tier.
func (s *PostgresStore) UpdateTenantTier(ctx context.Context, id string, tier models.Tier) error {
	if !tier.Valid() {
		return apperror.Validation("unknown tier %q", tier)
	}
	tag, err := s.db.Exec(ctx, `UPDATE tenants SET tier = $2, updated_at = now() WHERE id = $1`, id, string(tier))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound.WithMessage("tenant not found")
	}
	return nil
}

package lifecycle

import (
	"context"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/pkg/errors"
)

type Authorizer interface {
	IsOwner(e domain.Entity, callerID string) bool
	HasElevatedRole(ctx context.Context, callerID string) (bool, error)
}

// RoleAuthorizer grants moderators and admins access to every entity. An
// elevated caller whose own account is deactivated has no extra rights.
type RoleAuthorizer struct {
	accounts domain.AccountRepo
}

func NewRoleAuthorizer(accounts domain.AccountRepo) *RoleAuthorizer {
	return &RoleAuthorizer{accounts: accounts}
}

func (a *RoleAuthorizer) IsOwner(e domain.Entity, callerID string) bool {
	return callerID != "" && e.OwnerID == callerID
}

func (a *RoleAuthorizer) HasElevatedRole(ctx context.Context, callerID string) (bool, error) {
	if callerID == "" {
		return false, nil
	}

	caller, err := a.accounts.FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "could not resolve caller role")
	}

	return caller.LifecycleState == domain.StateActive && caller.Role.Elevated(), nil
}

func authorize(ctx context.Context, authz Authorizer, e domain.Entity, callerID string) error {
	if authz.IsOwner(e, callerID) {
		return nil
	}

	elevated, err := authz.HasElevatedRole(ctx, callerID)
	if err != nil {
		return err
	}
	if !elevated {
		return errors.Wrap(domain.ErrUnauthorized, "caller %q on %s %s", callerID, e.Kind, e.ID)
	}

	return nil
}

package lifecycle

import (
	"context"
	"testing"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts map[string]domain.Account

func (f fakeAccounts) FindByID(_ context.Context, id string) (*domain.Account, error) {
	a, ok := f[id]
	if !ok {
		return nil, errors.Wrap(domain.ErrNotFound, "account %s", id)
	}
	return &a, nil
}

func (f fakeAccounts) FindByHandle(_ context.Context, handle string) (*domain.Account, error) {
	for _, a := range f {
		if a.Handle == handle {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f fakeAccounts) Store(_ context.Context, account domain.Account) error {
	f[account.ID] = account
	return nil
}

func TestRoleAuthorizer(t *testing.T) {
	deactivated := t0
	accounts := fakeAccounts{
		"alice": {ID: "alice", Role: domain.RoleUser, LifecycleState: domain.StateActive},
		"mod":   {ID: "mod", Role: domain.RoleModerator, LifecycleState: domain.StateActive},
		"admin": {ID: "admin", Role: domain.RoleAdmin, LifecycleState: domain.StateActive},
		"gone":  {ID: "gone", Role: domain.RoleAdmin, LifecycleState: domain.StateSoftDeleted, DeactivatedAt: &deactivated},
	}
	authz := NewRoleAuthorizer(accounts)
	post := domain.Entity{Kind: domain.KindPost, ID: "p1", OwnerID: "alice", State: domain.StateActive}

	tests := []struct {
		caller string
		err    error
	}{
		{caller: "alice"},
		{caller: "mod"},
		{caller: "admin"},
		{caller: "gone", err: domain.ErrUnauthorized},
		{caller: "stranger", err: domain.ErrUnauthorized},
		{caller: "", err: domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.caller, func(t *testing.T) {
			err := authorize(context.Background(), authz, post, tt.caller)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRoleAuthorizer_AccountOwnsItself(t *testing.T) {
	authz := NewRoleAuthorizer(fakeAccounts{})
	account := domain.Account{ID: "alice"}.Entity()

	assert.True(t, authz.IsOwner(account, "alice"))
	assert.False(t, authz.IsOwner(account, "bob"))
}

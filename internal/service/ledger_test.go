package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
)

func TestLedgerDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := f.user("alice")

	first, err := f.ledgers.Create(ctx, LedgerInput{Name: "Home"})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "CNY", first.Currency)
	assert.Equal(t, "owner", first.Role)

	second, err := f.ledgers.Create(ctx, LedgerInput{Name: "Trip", Currency: "usd"})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
	assert.Equal(t, "USD", second.Currency)

	require.NoError(t, f.ledgers.SetDefault(ctx, second.ID))
	id, err := f.ledgers.DefaultLedgerID(context.Background(), reqctx.UserID(ctx))
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	list, err := f.ledgers.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	defaults := 0
	for _, l := range list {
		if l.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestDefaultLedgerID_FallsBackToMembership(t *testing.T) {
	f := newFixture(t)
	alice := f.owner("alice")
	bob := f.join(alice, f.user("bob"), models.RoleViewer)

	id, err := f.ledgers.DefaultLedgerID(context.Background(), reqctx.UserID(bob))
	require.NoError(t, err)
	assert.Equal(t, reqctx.LedgerID(alice), id)

	id, err = f.ledgers.DefaultLedgerID(context.Background(), 999)
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestLedgerDelete(t *testing.T) {
	f := newFixture(t)
	alice := f.owner("alice")
	ledgerID := reqctx.LedgerID(alice)
	spare, err := f.ledgers.Create(alice, LedgerInput{Name: "Spare"})
	require.NoError(t, err)
	bob := f.join(alice, f.user("bob"), models.RoleAdmin)
	inv, err := f.invites.Create(alice, ledgerID, InvitationInput{})
	require.NoError(t, err)

	err = f.ledgers.Delete(bob, ledgerID)
	assert.ErrorIs(t, err, apperr.ErrNoPermission)

	err = f.ledgers.Delete(alice, ledgerID)
	assert.ErrorIs(t, err, apperr.ErrCannotDeleteLedgerWithMembers)

	require.NoError(t, f.ledgers.RemoveMember(alice, ledgerID, reqctx.UserID(bob)))
	require.NoError(t, f.ledgers.Delete(alice, ledgerID))

	_, err = f.ledgers.Get(alice, ledgerID)
	assert.ErrorIs(t, err, apperr.ErrLedgerNotFound)
	_, err = f.txs.List(alice, TransactionFilter{})
	assert.ErrorIs(t, err, apperr.ErrLedgerNotFound)

	// invitations die with the ledger
	_, err = f.invites.Redeem(f.user("carol"), inv.Code)
	assert.ErrorIs(t, err, apperr.ErrInvitationDisabled)

	// the remaining ledger becomes the default
	id, err := f.ledgers.DefaultLedgerID(context.Background(), reqctx.UserID(alice))
	require.NoError(t, err)
	assert.Equal(t, spare.ID, id)
}

func TestMemberRoles(t *testing.T) {
	f := newFixture(t)
	alice := f.owner("alice")
	ledgerID := reqctx.LedgerID(alice)
	aliceID := reqctx.UserID(alice)
	bob := f.join(alice, f.user("bob"), models.RoleEditor)
	bobID := reqctx.UserID(bob)

	_, err := f.invites.Create(bob, ledgerID, InvitationInput{})
	assert.ErrorIs(t, err, apperr.ErrNoPermission)

	assert.ErrorIs(t, f.ledgers.UpdateMemberRole(alice, ledgerID, aliceID, models.RoleAdmin), apperr.ErrCannotModifyOwnerRole)
	assert.ErrorIs(t, f.ledgers.UpdateMemberRole(alice, ledgerID, bobID, models.RoleOwner), apperr.ErrCannotModifyOwnerRole)
	assert.ErrorIs(t, f.ledgers.UpdateMemberRole(alice, ledgerID, bobID, "boss"), apperr.ErrValidation)
	assert.ErrorIs(t, f.ledgers.UpdateMemberRole(alice, ledgerID, 999, models.RoleAdmin), apperr.ErrMemberNotFound)

	require.NoError(t, f.ledgers.UpdateMemberRole(alice, ledgerID, bobID, models.RoleAdmin))
	_, err = f.invites.Create(bob, ledgerID, InvitationInput{})
	assert.NoError(t, err)

	assert.ErrorIs(t, f.ledgers.RemoveMember(bob, ledgerID, aliceID), apperr.ErrCannotRemoveOwner)
	assert.ErrorIs(t, f.ledgers.Quit(alice, ledgerID), apperr.ErrCannotQuitOwner)

	members, err := f.ledgers.Members(alice, ledgerID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "owner", members[0].Role)
	assert.Equal(t, "bob", members[1].Username)
	assert.Equal(t, aliceID, *members[1].InvitedBy)

	require.NoError(t, f.ledgers.Quit(bob, ledgerID))
	_, err = f.ledgers.Get(bob, ledgerID)
	assert.ErrorIs(t, err, apperr.ErrNoAccess)
}

func TestRedeem_Rules(t *testing.T) {
	f := newFixture(t)
	alice := f.owner("alice")
	ledgerID := reqctx.LedgerID(alice)

	_, err := f.invites.Create(alice, ledgerID, InvitationInput{Role: models.RoleOwner})
	assert.ErrorIs(t, err, apperr.ErrInvalidInvitationRole)
	_, err = f.invites.Create(alice, ledgerID, InvitationInput{Role: "guest"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInvitationRole)

	inv, err := f.invites.Create(alice, ledgerID, InvitationInput{})
	require.NoError(t, err)
	assert.Equal(t, "editor", inv.Role)
	assert.Len(t, inv.Code, inviteCodeLength)
	assert.Equal(t, "https://ledger.example.com/join/"+inv.Code, inv.InviteURL)

	_, err = f.invites.Redeem(alice, inv.Code)
	assert.ErrorIs(t, err, apperr.ErrAlreadyMember)

	_, err = f.invites.Redeem(f.user("nobody"), "NOPE2345")
	assert.ErrorIs(t, err, apperr.ErrInvitationNotFound)

	bob := f.user("bob")
	res, err := f.invites.Redeem(bob, " "+inv.Code+" ")
	require.NoError(t, err)
	assert.Equal(t, ledgerID, res.LedgerID)
	assert.Equal(t, "editor", res.Role)

	// leaving and rejoining reuses the membership row
	require.NoError(t, f.ledgers.Quit(reqctx.WithLedger(bob, ledgerID), ledgerID))
	_, err = f.invites.Redeem(bob, inv.Code)
	require.NoError(t, err)
	n, err := f.st.Members.SelectCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, f.invites.Revoke(alice, ledgerID, inv.Code))
	_, err = f.invites.Redeem(f.user("carol"), inv.Code)
	assert.ErrorIs(t, err, apperr.ErrInvitationDisabled)

	active, err := f.invites.List(alice, ledgerID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRedeem_Expired(t *testing.T) {
	f := newFixture(t)
	alice := f.owner("alice")
	past := testNow.Add(-time.Hour)
	inv := &models.Invitation{
		LedgerID: reqctx.LedgerID(alice), Code: "EXPIRED2", Role: models.RoleViewer,
		ExpiresAt: &past, CreatedBy: reqctx.UserID(alice), Status: models.InvitationActive,
	}
	require.NoError(t, f.st.Invitations.Insert(context.Background(), inv))

	_, err := f.invites.Redeem(f.user("bob"), "expired2")
	assert.ErrorIs(t, err, apperr.ErrInvitationExpired)
}

func TestRedeem_SingleUse(t *testing.T) {
	f := newFixture(t)
	alice := f.owner("alice")
	inv, err := f.invites.Create(alice, reqctx.LedgerID(alice), InvitationInput{Role: models.RoleViewer, MaxUses: 1})
	require.NoError(t, err)

	_, err = f.invites.Redeem(f.user("bob"), inv.Code)
	require.NoError(t, err)
	_, err = f.invites.Redeem(f.user("carol"), inv.Code)
	assert.ErrorIs(t, err, apperr.ErrInvitationMaxUsesReached)
}

func TestRedeem_ConcurrentNeverExceedsMaxUses(t *testing.T) {
	f := newFixture(t)
	alice := f.owner("alice")
	const maxUses = 3
	inv, err := f.invites.Create(alice, reqctx.LedgerID(alice), InvitationInput{MaxUses: maxUses})
	require.NoError(t, err)

	users := make([]context.Context, 10)
	for i := range users {
		users[i] = f.user("user" + string(rune('a'+i)))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for _, ctx := range users {
		wg.Add(1)
		go func(ctx context.Context) {
			defer wg.Done()
			_, err := f.invites.Redeem(ctx, inv.Code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrInvitationMaxUsesReached):
				rejected++
			default:
				t.Errorf("unexpected redeem error: %v", err)
			}
		}(ctx)
	}
	wg.Wait()

	assert.Equal(t, maxUses, succeeded)
	assert.Equal(t, len(users)-maxUses, rejected)

	row, err := f.st.Invitations.SelectByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, maxUses, row.UsedCount)
	members, err := f.ledgers.Members(alice, reqctx.LedgerID(alice))
	require.NoError(t, err)
	assert.Len(t, members, maxUses+1)
}

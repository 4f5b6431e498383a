package service

import (
	"context"
	"testing"

	"ladder-app/internal/elo"
	"ladder-app/internal/ladder"
	players "ladder-app/internal/player"
	"ladder-app/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := createTestPlayer(t, env, "ban-admin", players.RoleAdmin)
	target := createTestPlayer(t, env, "ban-target", players.RoleUser)
	c := createTestPlayer(t, env, "ban-opp-c", players.RoleUser)
	d := createTestPlayer(t, env, "ban-opp-d", players.RoleUser)

	pending, err := env.matchSvc.Create(ctx, pendingMatchValues(target, c, true), utils.Ptr(target.ID))
	require.NoError(t, err)
	applied, err := env.matchSvc.Create(ctx, completedMatchValues(target, d, true), utils.Ptr(target.ID))
	require.NoError(t, err)
	require.Equal(t, 1180, getPlayer(t, env, d.ID).Rating)

	// A report authored by the target against someone else's match.
	other, err := env.matchSvc.Create(ctx, completedMatchValues(c, d, false), utils.Ptr(c.ID))
	require.NoError(t, err)
	_, err = env.reportSvc.Create(ctx, target.ID, other.Match.ID, nil)
	require.NoError(t, err)

	ban, err := env.banSvc.Ban(ctx, BanArgs{
		UserID:       target.ID,
		BannedByID:   admin.ID,
		BannedByRole: admin.Role,
		Reason:       utils.Ptr("cheating"),
	})
	require.NoError(t, err)
	assert.Equal(t, target.ID, ban.UserID)

	// Every match the target touched is gone.
	_, err = env.matchSvc.Get(ctx, pending.Match.ID)
	assert.ErrorIs(t, err, ladder.ErrNotFound)
	_, err = env.matchSvc.Get(ctx, applied.Match.ID)
	assert.ErrorIs(t, err, ladder.ErrNotFound)

	// The applied match's rating exchange was undone for the opponent too.
	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, d.ID).Rating)
	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, target.ID).Rating)
	assert.Equal(t, 0, getPlayer(t, env, d.ID).RatedMatchCount)

	// Their authored report is gone; the reported match survives.
	reports, err := env.reportSvc.List(ctx, admin.ID, admin.Role)
	require.NoError(t, err)
	assert.Empty(t, reports)
	_, err = env.matchSvc.Get(ctx, other.Match.ID)
	assert.NoError(t, err, "a match merely reported by the target stays")

	// The player row itself survives the ban.
	assert.Equal(t, target.Username, getPlayer(t, env, target.ID).Username)

	bans, err := env.banSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, admin.ID, bans[0].BannedByID)
	assert.Equal(t, target.Username, bans[0].Username)
	assert.Equal(t, admin.Username, bans[0].BannedByUsername)
}

func TestBanAlreadyBanned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := createTestPlayer(t, env, "dup-admin", players.RoleAdmin)
	target := createTestPlayer(t, env, "dup-target", players.RoleUser)

	args := BanArgs{UserID: target.ID, BannedByID: admin.ID, BannedByRole: admin.Role}
	_, err := env.banSvc.Ban(ctx, args)
	require.NoError(t, err)

	_, err = env.banSvc.Ban(ctx, args)
	require.ErrorIs(t, err, ladder.ErrConflict)
}

func TestBanUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	admin := createTestPlayer(t, env, "bnf-admin", players.RoleAdmin)

	_, err := env.banSvc.Ban(context.Background(), BanArgs{
		UserID:       uuid.New(),
		BannedByID:   admin.ID,
		BannedByRole: admin.Role,
	})
	require.ErrorIs(t, err, ladder.ErrNotFound)
}

func TestUnban(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := createTestPlayer(t, env, "unban-admin", players.RoleAdmin)
	target := createTestPlayer(t, env, "unban-target", players.RoleUser)
	opp := createTestPlayer(t, env, "unban-opp", players.RoleUser)

	data, err := env.matchSvc.Create(ctx, completedMatchValues(target, opp, true), utils.Ptr(target.ID))
	require.NoError(t, err)

	_, err = env.banSvc.Ban(ctx, BanArgs{UserID: target.ID, BannedByID: admin.ID, BannedByRole: admin.Role})
	require.NoError(t, err)

	require.NoError(t, env.banSvc.Unban(ctx, target.ID))

	// Lifting the ban restores nothing: the deleted match stays deleted.
	_, err = env.matchSvc.Get(ctx, data.Match.ID)
	assert.ErrorIs(t, err, ladder.ErrNotFound)
	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, target.ID).Rating)

	bans, err := env.banSvc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, bans)
}

func TestUnbanNotBanned(t *testing.T) {
	env := newTestEnv(t)
	target := createTestPlayer(t, env, "nb-target", players.RoleUser)

	err := env.banSvc.Unban(context.Background(), target.ID)
	require.ErrorIs(t, err, ladder.ErrNotFound)
}

package service

import (
	"context"
	"testing"
	"time"

	"ladder-app/internal/elo"
	"ladder-app/internal/ladder"
	players "ladder-app/internal/player"
	"ladder-app/internal/store"
	"ladder-app/internal/utils"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	// The in-memory database lives on a single connection.
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type testEnv struct {
	db      *sqlx.DB
	players *store.PlayerStore
	matches *store.MatchStore
	reports *store.ReportStore
	bans    *store.BanStore

	rating    *RatingService
	matchSvc  *MatchService
	reportSvc *ReportService
	banSvc    *BanService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	playerStore := store.NewPlayerStore(db)
	matchStore := store.NewMatchStore(db)
	reportStore := store.NewReportStore(db)
	banStore := store.NewBanStore(db)

	rating := NewRatingService(db, matchStore, playerStore)
	matchSvc := NewMatchService(db, matchStore, playerStore, rating)
	reportSvc := NewReportService(db, reportStore, matchStore, matchSvc)
	banSvc := NewBanService(db, banStore, playerStore, matchStore, reportStore, matchSvc)

	return &testEnv{
		db:        db,
		players:   playerStore,
		matches:   matchStore,
		reports:   reportStore,
		bans:      banStore,
		rating:    rating,
		matchSvc:  matchSvc,
		reportSvc: reportSvc,
		banSvc:    banSvc,
	}
}

func createTestPlayer(t *testing.T, env *testEnv, username string, role players.Role) *players.Player {
	t.Helper()

	player := &players.Player{
		ID:       uuid.New(),
		Email:    username + "@test.local",
		Username: username,
		Role:     role,
		Rating:   elo.DefaultRating,
	}
	require.NoError(t, env.players.CreatePlayer(context.Background(), player))
	return player
}

func setPlayerRating(t *testing.T, env *testEnv, id uuid.UUID, rating, count int) {
	t.Helper()
	_, err := env.db.Exec("UPDATE players SET rating = ?, rated_match_count = ? WHERE id = ?", rating, count, id)
	require.NoError(t, err)
}

func getPlayer(t *testing.T, env *testEnv, id uuid.UUID) *players.Player {
	t.Helper()
	player, err := env.players.GetPlayer(context.Background(), id)
	require.NoError(t, err)
	return player
}

func completedMatchValues(winner, loser *players.Player, rated bool) *MatchValues {
	return &MatchValues{
		Status: ladder.MatchCompleted,
		Rated:  rated,
		Participants: []ParticipantInput{
			{UserID: winner.ID, Score: 10},
			{UserID: loser.ID, Score: 3},
		},
		WinnerID: utils.Ptr(winner.ID),
	}
}

func pendingMatchValues(a, b *players.Player, rated bool) *MatchValues {
	return &MatchValues{
		Status: ladder.MatchPending,
		Rated:  rated,
		Participants: []ParticipantInput{
			{UserID: a.ID, Score: 0},
			{UserID: b.ID, Score: 0},
		},
	}
}

func TestApplyRating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := createTestPlayer(t, env, "apply-winner", players.RoleUser)
	b := createTestPlayer(t, env, "apply-loser", players.RoleUser)

	data, err := env.matchSvc.Create(ctx, completedMatchValues(a, b, true), utils.Ptr(a.ID))
	require.NoError(t, err)
	require.NotNil(t, data.Match.RatingAppliedAt)

	// Both start at 1200 with zero rated matches: K=40, exchange is 20.
	winner := getPlayer(t, env, a.ID)
	loser := getPlayer(t, env, b.ID)
	assert.Equal(t, 1220, winner.Rating)
	assert.Equal(t, 1180, loser.Rating)
	assert.Equal(t, 1, winner.RatedMatchCount)
	assert.Equal(t, 1, loser.RatedMatchCount)

	// The snapshot records exactly what was applied.
	for _, p := range data.Participants {
		require.NotNil(t, p.RatingDelta)
		require.NotNil(t, p.RatingBefore)
		assert.Equal(t, 1200, *p.RatingBefore)
		switch p.UserID {
		case a.ID:
			assert.Equal(t, 20, *p.RatingDelta)
			assert.Equal(t, 1220, *p.RatingAfter)
		case b.ID:
			assert.Equal(t, -20, *p.RatingDelta)
			assert.Equal(t, 1180, *p.RatingAfter)
		default:
			t.Fatalf("unexpected participant %s", p.UserID)
		}
	}
}

func TestApplyRatingIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := createTestPlayer(t, env, "idem-winner", players.RoleUser)
	b := createTestPlayer(t, env, "idem-loser", players.RoleUser)

	data, err := env.matchSvc.Create(ctx, completedMatchValues(a, b, true), utils.Ptr(a.ID))
	require.NoError(t, err)

	// A second apply loses the claim and must change nothing.
	_, err = env.rating.Apply(ctx, data.Match.ID)
	require.NoError(t, err)

	assert.Equal(t, 1220, getPlayer(t, env, a.ID).Rating)
	assert.Equal(t, 1180, getPlayer(t, env, b.ID).Rating)
	assert.Equal(t, 1, getPlayer(t, env, a.ID).RatedMatchCount)
}

func TestApplyRatingSkipsUnratedAndPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := createTestPlayer(t, env, "skip-a", players.RoleUser)
	b := createTestPlayer(t, env, "skip-b", players.RoleUser)

	unrated, err := env.matchSvc.Create(ctx, completedMatchValues(a, b, false), utils.Ptr(a.ID))
	require.NoError(t, err)
	assert.Nil(t, unrated.Match.RatingAppliedAt)

	pending, err := env.matchSvc.Create(ctx, pendingMatchValues(a, b, true), utils.Ptr(a.ID))
	require.NoError(t, err)

	_, err = env.rating.Apply(ctx, unrated.Match.ID)
	require.NoError(t, err)
	_, err = env.rating.Apply(ctx, pending.Match.ID)
	require.NoError(t, err)

	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, a.ID).Rating)
	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, b.ID).Rating)
	assert.Equal(t, 0, getPlayer(t, env, a.ID).RatedMatchCount)
}

func TestDeleteRevertsRating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := createTestPlayer(t, env, "revert-admin", players.RoleAdmin)
	a := createTestPlayer(t, env, "revert-winner", players.RoleUser)
	b := createTestPlayer(t, env, "revert-loser", players.RoleUser)

	data, err := env.matchSvc.Create(ctx, completedMatchValues(a, b, true), utils.Ptr(a.ID))
	require.NoError(t, err)
	require.Equal(t, 1220, getPlayer(t, env, a.ID).Rating)

	_, err = env.matchSvc.Delete(ctx, data.Match.ID, admin.ID, admin.Role)
	require.NoError(t, err)

	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, a.ID).Rating)
	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, b.ID).Rating)
	assert.Equal(t, 0, getPlayer(t, env, a.ID).RatedMatchCount)
	assert.Equal(t, 0, getPlayer(t, env, b.ID).RatedMatchCount)
}

func TestRevertIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := createTestPlayer(t, env, "ridem-winner", players.RoleUser)
	b := createTestPlayer(t, env, "ridem-loser", players.RoleUser)

	data, err := env.matchSvc.Create(ctx, completedMatchValues(a, b, true), utils.Ptr(a.ID))
	require.NoError(t, err)

	_, err = env.rating.Revert(ctx, data.Match.ID)
	require.NoError(t, err)
	require.Equal(t, elo.DefaultRating, getPlayer(t, env, a.ID).Rating)

	// Second revert loses the claim: ratings stay put.
	_, err = env.rating.Revert(ctx, data.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, a.ID).Rating)
	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, b.ID).Rating)
}

func TestApplyClampsAtFloor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := createTestPlayer(t, env, "floor-winner", players.RoleUser)
	b := createTestPlayer(t, env, "floor-loser", players.RoleUser)
	setPlayerRating(t, env, a.ID, 110, 0)
	setPlayerRating(t, env, b.ID, 110, 0)

	_, err := env.matchSvc.Create(ctx, completedMatchValues(a, b, true), utils.Ptr(a.ID))
	require.NoError(t, err)

	// 110 - 20 would be 90; the floor holds it at 100.
	assert.Equal(t, 130, getPlayer(t, env, a.ID).Rating)
	assert.Equal(t, elo.MinRating, getPlayer(t, env, b.ID).Rating)
}

func TestRevertMissingDeltaIsIntegrityError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := createTestPlayer(t, env, "integ-a", players.RoleUser)
	b := createTestPlayer(t, env, "integ-b", players.RoleUser)

	// Build a corrupted applied match by hand: watermark set, no snapshot.
	matchID := uuid.New()
	now := time.Now().UTC()
	tx, err := env.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, env.matches.CreateMatchTx(ctx, tx, &ladder.Match{
		ID:              matchID,
		Status:          ladder.MatchCompleted,
		Rated:           true,
		WinnerID:        utils.Ptr(a.ID),
		CreatedAt:       now,
		CompletedAt:     &now,
		RatingAppliedAt: &now,
	}))
	require.NoError(t, env.matches.CreateParticipantsTx(ctx, tx, []ladder.Participant{
		{MatchID: matchID, UserID: a.ID, Score: 10},
		{MatchID: matchID, UserID: b.ID, Score: 3},
	}))
	require.NoError(t, tx.Commit())

	_, err = env.rating.Revert(ctx, matchID)
	require.ErrorIs(t, err, ladder.ErrIntegrity)

	// The failed revert must not have burned the claim or moved ratings.
	match, err := env.matches.GetMatch(ctx, matchID)
	require.NoError(t, err)
	assert.Nil(t, match.RatingRevertedAt)
	assert.Equal(t, elo.DefaultRating, getPlayer(t, env, a.ID).Rating)
}

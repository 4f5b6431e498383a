package middleware

import (
	"context"
	"net/http"
	"os"

	"ladder-app/internal/httputil"
	players "ladder-app/internal/player"
	"ladder-app/internal/store"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
)

type ContextKey string

const PlayerIDKey ContextKey = "playerID"

func InitAuth() {
	discordKey := os.Getenv("DISCORD_KEY")
	discordSecret := os.Getenv("DISCORD_SECRET")
	discordCallbackURL := os.Getenv("DISCORD_CALLBACK_URL")

	googleKey := os.Getenv("GOOGLE_KEY")
	googleSecret := os.Getenv("GOOGLE_SECRET")
	googleCallbackURL := os.Getenv("GOOGLE_CALLBACK_URL")

	goth.UseProviders(
		discord.New(discordKey, discordSecret, discordCallbackURL, discord.ScopeIdentify, discord.ScopeEmail),
		google.New(googleKey, googleSecret, googleCallbackURL, "email", "profile"),
	)
}

// LoadAuthenticatedPlayer resolves the session's player and stashes it in
// the request context. It never rejects; RequirePlayer does that.
func LoadAuthenticatedPlayer(sessionManager *scs.SessionManager, playerStore *store.PlayerStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerIDStr := sessionManager.GetString(r.Context(), "playerID")
			if playerIDStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			playerID, err := uuid.Parse(playerIDStr)
			if err != nil {
				sessionManager.Remove(r.Context(), "playerID")
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), PlayerIDKey, playerID)

			player, err := playerStore.GetPlayer(ctx, playerID)
			if err == nil {
				ctx = context.WithValue(ctx, players.PlayerKey, player)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePlayer rejects requests without an authenticated player.
func RequirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAuthenticatedPlayer(r.Context()) == nil {
			httputil.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetPlayerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(PlayerIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

func GetAuthenticatedPlayer(ctx context.Context) *players.Player {
	val := ctx.Value(players.PlayerKey)
	if val == nil {
		return nil
	}
	player, ok := val.(*players.Player)
	if !ok {
		return nil
	}
	return player
}

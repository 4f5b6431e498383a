package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"ladder-app/internal/httputil"
	"ladder-app/internal/middleware"
	"ladder-app/internal/service"
	"ladder-app/internal/store"
	"ladder-app/internal/utils"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth/gothic"
)

func newRouter(sessionManager *scs.SessionManager, db *sqlx.DB) http.Handler {
	playerStore := store.NewPlayerStore(db)
	matchStore := store.NewMatchStore(db)
	reportStore := store.NewReportStore(db)
	banStore := store.NewBanStore(db)

	ratingService := service.NewRatingService(db, matchStore, playerStore)
	matchService := service.NewMatchService(db, matchStore, playerStore, ratingService)
	reportService := service.NewReportService(db, reportStore, matchStore, matchService)
	banService := service.NewBanService(db, banStore, playerStore, matchStore, reportStore, matchService)
	playerService := service.NewPlayerService(db, playerStore)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.LoadAuthenticatedPlayer(sessionManager, playerStore))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "Resource not found", nil)
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		player, err := playerService.FindOrCreatePlayerByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create player", err)
			return
		}

		sessionManager.Put(r.Context(), "playerID", player.ID.String())

		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		sessionManager.Destroy(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePlayer)

		r.Get("/api/me", func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteJSON(w, http.StatusOK, middleware.GetAuthenticatedPlayer(r.Context()))
		})

		r.Get("/api/players", func(w http.ResponseWriter, r *http.Request) {
			list, err := playerService.List(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to list players", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, list)
		})

		r.Get("/api/ranks", func(w http.ResponseWriter, r *http.Request) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			ranks, err := playerService.Rankings(r.Context(), limit)
			if err != nil {
				httputil.InternalServerError(w, "Failed to load rankings", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, ranks)
		})

		r.Get("/api/matches", func(w http.ResponseWriter, r *http.Request) {
			args, err := parseListArgs(r)
			if err != nil {
				httputil.BadRequest(w, "Invalid listing arguments", err)
				return
			}
			batch, err := matchService.List(r.Context(), args)
			if err != nil {
				httputil.InternalServerError(w, "Failed to list matches", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, batch)
		})

		r.Post("/api/matches", func(w http.ResponseWriter, r *http.Request) {
			var values service.MatchValues
			if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			actor := middleware.GetAuthenticatedPlayer(r.Context())
			if !actor.Role.IsStaff() && !participatesIn(&values, actor.ID) {
				httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
					"message": "Users can only create matches they participate in",
				})
				return
			}

			match, err := matchService.Create(r.Context(), &values, &actor.ID)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, match)
		})

		r.Get("/api/matches/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match ID", err)
				return
			}
			match, err := matchService.Get(r.Context(), id)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, match)
		})

		r.Get("/api/matches/{id}/preview", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match ID", err)
				return
			}
			preview, err := matchService.Preview(r.Context(), id)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, preview)
		})

		r.Patch("/api/matches/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match ID", err)
				return
			}
			var values service.MatchValues
			if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			actor := middleware.GetAuthenticatedPlayer(r.Context())
			match, err := matchService.Update(r.Context(), id, &values, actor.ID, actor.Role)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, match)
		})

		r.Delete("/api/matches/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match ID", err)
				return
			}

			actor := middleware.GetAuthenticatedPlayer(r.Context())
			deletedID, err := matchService.Delete(r.Context(), id, actor.ID, actor.Role)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"deletedId": deletedID.String()})
		})

		r.Get("/api/reports", func(w http.ResponseWriter, r *http.Request) {
			actor := middleware.GetAuthenticatedPlayer(r.Context())
			reports, err := reportService.List(r.Context(), actor.ID, actor.Role)
			if err != nil {
				httputil.InternalServerError(w, "Failed to list reports", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, reports)
		})

		r.Post("/api/reports", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				MatchID uuid.UUID `json:"matchId"`
				Message string    `json:"message"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			actor := middleware.GetAuthenticatedPlayer(r.Context())
			report, err := reportService.Create(r.Context(), actor.ID, body.MatchID, utils.StringOrNil(body.Message))
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, report)
		})

		r.Post("/api/reports/{id}/accept", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid report ID", err)
				return
			}

			actor := middleware.GetAuthenticatedPlayer(r.Context())
			result, err := reportService.Accept(r.Context(), id, actor.ID, actor.Role)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, result)
		})

		r.Post("/api/reports/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid report ID", err)
				return
			}

			actor := middleware.GetAuthenticatedPlayer(r.Context())
			report, err := reportService.Reject(r.Context(), id, actor.Role)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, report)
		})

		r.Get("/api/bans", func(w http.ResponseWriter, r *http.Request) {
			actor := middleware.GetAuthenticatedPlayer(r.Context())
			if !actor.Role.IsStaff() {
				httputil.WriteJSON(w, http.StatusForbidden, map[string]string{"message": "admin privileges required"})
				return
			}
			bans, err := banService.List(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to list bans", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, bans)
		})

		r.Post("/api/ban", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				UserID uuid.UUID `json:"userId"`
				Reason *string   `json:"reason"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			actor := middleware.GetAuthenticatedPlayer(r.Context())
			if !actor.Role.IsStaff() {
				httputil.WriteJSON(w, http.StatusForbidden, map[string]string{"message": "admin privileges required"})
				return
			}

			ban, err := banService.Ban(r.Context(), service.BanArgs{
				UserID:       body.UserID,
				BannedByID:   actor.ID,
				BannedByRole: actor.Role,
				Reason:       body.Reason,
			})
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, ban)
		})

		r.Post("/api/unban", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				UserID uuid.UUID `json:"userId"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			actor := middleware.GetAuthenticatedPlayer(r.Context())
			if !actor.Role.IsStaff() {
				httputil.WriteJSON(w, http.StatusForbidden, map[string]string{"message": "admin privileges required"})
				return
			}

			if err := banService.Unban(r.Context(), body.UserID); err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"userId": body.UserID.String()})
		})
	})

	return r
}

func participatesIn(values *service.MatchValues, playerID uuid.UUID) bool {
	for _, p := range values.Participants {
		if p.UserID == playerID {
			return true
		}
	}
	return false
}

func parseListArgs(r *http.Request) (service.ListMatchesArgs, error) {
	q := r.URL.Query()
	args := service.ListMatchesArgs{Ascending: q.Get("order") == "asc"}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return args, err
		}
		args.Limit = limit
	}

	if cursorID := q.Get("cursor"); cursorID != "" {
		id, err := uuid.Parse(cursorID)
		if err != nil {
			return args, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, q.Get("cursorCreatedAt"))
		if err != nil {
			return args, err
		}
		args.Cursor = &store.MatchCursor{ID: id, CreatedAt: createdAt}
	}

	return args, nil
}

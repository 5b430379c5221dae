package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/tiketahq/tiketa-backend/api/responses"
	"github.com/tiketahq/tiketa-backend/api/validators"
	"github.com/tiketahq/tiketa-backend/internal/points"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
	"github.com/tiketahq/tiketa-backend/pkg/pagination"
)

// PointsBalance returns the caller's spendable point total.
func PointsBalance(ledger points.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "points ledger unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := ledger.Balance(r.Context(), userID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]int{"balance": balance})
	}
}

// PointsHistory pages through the caller's point grants, newest first.
func PointsHistory(ledger points.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "points ledger unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := ledger.History(r.Context(), points.HistoryParams{
			UserID: userID,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, history)
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/tiketahq/tiketa-backend/api/responses"
	"github.com/tiketahq/tiketa-backend/api/validators"
	"github.com/tiketahq/tiketa-backend/internal/discounts"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
	"github.com/tiketahq/tiketa-backend/pkg/pagination"
)

// ListMyCoupons pages through the caller's coupons, newest first.
func ListMyCoupons(catalog discounts.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon catalog unavailable"))
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

		list, err := catalog.ListForUser(r.Context(), discounts.CouponListParams{
			UserID: userID,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

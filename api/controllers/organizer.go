package controllers

import (
	"net/http"
	"strings"

	"github.com/tiketahq/tiketa-backend/api/responses"
	"github.com/tiketahq/tiketa-backend/api/validators"
	"github.com/tiketahq/tiketa-backend/internal/transactions"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
)

const (
	decisionAccept = "accept"
	decisionReject = "reject"
)

type transactionDecisionRequest struct {
	Decision string `json:"decision" validate:"required"`
	Reason   string `json:"reason"`
}

// ListOrganizerTransactions pages through purchases for the organizer's events.
func ListOrganizerTransactions(svc *transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		organizerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := buildListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.OrganizerID = organizerID

		list, err := svc.ListForOrganizer(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// DecideTransaction accepts or rejects a proof awaiting confirmation.
func DecideTransaction(svc *transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		organizerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transactionDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var accept bool
		switch strings.ToLower(strings.TrimSpace(payload.Decision)) {
		case decisionAccept:
			accept = true
		case decisionReject:
			accept = false
		default:
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "decision must be accept or reject"))
			return
		}

		txn, err := svc.Decide(r.Context(), organizerID, transactionID, accept, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, txn)
	}
}

package controllers

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tiketahq/tiketa-backend/api/responses"
	"github.com/tiketahq/tiketa-backend/api/validators"
	"github.com/tiketahq/tiketa-backend/internal/transactions"
	"github.com/tiketahq/tiketa-backend/pkg/enums"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
	"github.com/tiketahq/tiketa-backend/pkg/pagination"
)

const proofFormField = "proof"

var allowedProofContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"application/pdf": {},
}

type createTransactionRequest struct {
	EventID       uuid.UUID                 `json:"event_id" validate:"required"`
	Items         []transactions.ItemParams `json:"items" validate:"required,min=1,dive"`
	PromotionCode string                    `json:"promotion_code"`
	CouponCode    string                    `json:"coupon_code"`
	PointsToUse   int                       `json:"points_to_use" validate:"gte=0"`
}

// CreateTransaction starts a purchase for the authenticated customer.
func CreateTransaction(svc *transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createTransactionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Create(r.Context(), transactions.CreateParams{
			UserID:        userID,
			EventID:       payload.EventID,
			Items:         payload.Items,
			PromotionCode: payload.PromotionCode,
			CouponCode:    payload.CouponCode,
			PointsToUse:   payload.PointsToUse,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// ListMyTransactions pages through the authenticated customer's purchases.
func ListMyTransactions(svc *transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := buildListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.UserID = userID

		list, err := svc.ListForUser(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// TransactionDetail returns one purchase, items included, for its buyer.
func TransactionDetail(svc *transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.GetForUser(r.Context(), userID, transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, txn)
	}
}

// UploadPaymentProof accepts a multipart proof file and advances the
// transaction to waiting confirmation.
func UploadPaymentProof(svc *transactions.Service, logg *logger.Logger, maxSizeMB int) http.HandlerFunc {
	maxBytes := int64(maxSizeMB) << 20
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "proof file too large or malformed"))
			return
		}

		file, header, err := r.FormFile(proofFormField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "proof file is required"))
			return
		}
		defer func() { _ = file.Close() }()

		contentType := header.Header.Get("Content-Type")
		if _, ok := allowedProofContentTypes[contentType]; !ok {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unsupported proof content type").WithDetails(map[string]any{
					"content_type": contentType,
				}))
			return
		}

		filename := validators.SanitizeString(filepath.Base(header.Filename), 128)
		if filename == "" || filename == "." {
			filename = "proof"
		}

		txn, err := svc.UploadProof(r.Context(), userID, transactionID, filename, contentType, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, txn)
	}
}

// CancelTransaction lets the buyer abandon a purchase still awaiting payment.
func CancelTransaction(svc *transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), userID, transactionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

func parseTransactionID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "transactionId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction id")
	}
	return id, nil
}

func buildListParams(r *http.Request) (transactions.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return transactions.ListParams{}, err
	}

	params := transactions.ListParams{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseTransactionStatus(raw)
		if err != nil {
			return transactions.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		params.Status = status
	}

	if from, err := parseTimeQuery(r, "from"); err != nil {
		return transactions.ListParams{}, err
	} else if from != nil {
		params.From = from
	}
	if to, err := parseTimeQuery(r, "to"); err != nil {
		return transactions.ListParams{}, err
	} else if to != nil {
		params.To = to
	}

	return params, nil
}

func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be RFC3339").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

package points

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
	"github.com/tiketahq/tiketa-backend/pkg/pagination"
)

const defaultRefundMonths = 3

// Ledger manages loyalty point grants. Consume and Refund compose into the
// caller's transaction; reads run on the bound connection.
type Ledger interface {
	Balance(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)
	BalanceIn(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) (int, error)
	History(ctx context.Context, params HistoryParams) (*HistoryResult, error)
	Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, now time.Time) error
	Refund(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, now time.Time) error
}

// HistoryParams configures the grant history listing.
type HistoryParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// HistoryResult wraps returned grants and the cursor for the next page.
type HistoryResult struct {
	Items  []models.PointGrant `json:"items"`
	Cursor string              `json:"cursor"`
}

type ledger struct {
	db           *gorm.DB
	refundMonths int
}

// NewLedger builds the points ledger. refundMonths controls how far out
// refunded grants expire; zero falls back to the default.
func NewLedger(db *gorm.DB, refundMonths int) (Ledger, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "points ledger requires a database")
	}
	if refundMonths <= 0 {
		refundMonths = defaultRefundMonths
	}
	return &ledger{db: db, refundMonths: refundMonths}, nil
}

func (l *ledger) Balance(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	return balanceOn(l.db.WithContext(ctx), userID, now)
}

// BalanceIn reads the balance on the caller's transaction, so the check and
// a following Consume see the same grants.
func (l *ledger) BalanceIn(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for point balance")
	}
	return balanceOn(tx.WithContext(ctx), userID, now)
}

func balanceOn(db *gorm.DB, userID uuid.UUID, now time.Time) (int, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	var total int64
	err := db.
		Model(&models.PointGrant{}).
		Where("user_id = ? AND remaining_amount > 0 AND expires_at > ?", userID, now).
		Select("COALESCE(SUM(remaining_amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum point balance")
	}
	return int(total), nil
}

func (l *ledger) History(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := l.db.WithContext(ctx).
		Model(&models.PointGrant{}).
		Where("user_id = ?", params.UserID)
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		if cursor != nil {
			query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var grants []models.PointGrant
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&grants).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list point grants")
	}

	next := ""
	if len(grants) > normalized {
		grants = grants[:normalized]
		last := grants[len(grants)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &HistoryResult{Items: grants, Cursor: next}, nil
}

// Consume drains grants soonest-expiry first. Each decrement carries a
// remaining_amount guard so concurrent spenders cannot double-spend a grant.
func (l *ledger) Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, now time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for point consumption")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points to use must be positive")
	}

	var grants []models.PointGrant
	err := tx.WithContext(ctx).
		Where("user_id = ? AND remaining_amount > 0 AND expires_at > ?", userID, now).
		Order("expires_at ASC, id ASC").
		Find(&grants).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load point grants")
	}

	remaining := amount
	for _, grant := range grants {
		if remaining == 0 {
			break
		}
		take := grant.RemainingAmount
		if take > remaining {
			take = remaining
		}
		res := tx.WithContext(ctx).Exec(`
			UPDATE point_grants
			SET remaining_amount = remaining_amount - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND remaining_amount >= ?
		`, take, grant.ID, take)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "consume point grant")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient points balance")
		}
		remaining -= take
	}
	if remaining > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient points balance")
	}
	return nil
}

// Refund issues a fresh grant rather than topping up the drained ones, so
// restored points get a new expiry window.
func (l *ledger) Refund(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, now time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for point refund")
	}
	if amount <= 0 {
		return nil
	}
	grant := models.PointGrant{
		ID:              uuid.New(),
		UserID:          userID,
		Amount:          amount,
		RemainingAmount: amount,
		ExpiresAt:       now.AddDate(0, l.refundMonths, 0),
	}
	if err := tx.WithContext(ctx).Create(&grant).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund grant")
	}
	return nil
}

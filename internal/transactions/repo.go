package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	"github.com/tiketahq/tiketa-backend/pkg/enums"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
	"github.com/tiketahq/tiketa-backend/pkg/pagination"
)

// Repository persists transactions and their purchase lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	CreateItems(ctx context.Context, items []models.TransactionItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	FindExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]models.Transaction, error)
	FindStaleCandidates(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
	// UpdateStatusIf moves id from one status to another. It reports false
	// without error when the row was not in the expected status.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error)
	SetPaymentProof(ctx context.Context, id uuid.UUID, proofURL string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transactions repository requires a database")
	}
	return &repository{db: db}, nil
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Omit("Items").Create(txn).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}
	return nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.TransactionItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction items")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find transaction")
	}
	return &txn, nil
}

func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Preload("Items").Preload("Buyer").Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find transaction detail")
	}
	return &txn, nil
}

func (r *repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{})

	switch {
	case params.UserID != uuid.Nil:
		query = query.Where("transactions.user_id = ?", params.UserID)
	case params.OrganizerID != uuid.Nil:
		query = query.
			Joins("JOIN events ON events.id = transactions.event_id").
			Where("events.organizer_id = ?", params.OrganizerID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing scope required")
	}

	if params.Status != "" {
		if !params.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		query = query.Where("transactions.status = ?", params.Status)
	}
	if params.From != nil {
		query = query.Where("transactions.created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("transactions.created_at <= ?", *params.To)
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		if cursor != nil {
			query = query.Where("(transactions.created_at, transactions.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	var txns []models.Transaction
	err := query.
		Order("transactions.created_at DESC, transactions.id DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	next := ""
	if len(txns) > normalized {
		txns = txns[:normalized]
		last := txns[len(txns)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &ListResult{Items: txns, Cursor: next}, nil
}

func (r *repository) FindExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND payment_deadline < ?", enums.TransactionStatusWaitingPayment, now).
		Order("payment_deadline ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired candidates")
	}
	return txns, nil
}

func (r *repository) FindStaleCandidates(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND updated_at < ?", enums.TransactionStatusWaitingConfirmation, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale candidates")
	}
	return txns, nil
}

func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE transactions
		SET status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, to, id, from)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update transaction status")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetPaymentProof(ctx context.Context, id uuid.UUID, proofURL string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE transactions
		SET payment_proof = ?,
			status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, proofURL, enums.TransactionStatusWaitingConfirmation, id, enums.TransactionStatusWaitingPayment)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "set payment proof")
	}
	return res.RowsAffected > 0, nil
}

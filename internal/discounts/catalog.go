package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
	"github.com/tiketahq/tiketa-backend/pkg/pagination"
)

// CouponListParams configures the coupon listing for one buyer.
type CouponListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// CouponList wraps returned coupons and the cursor for the next page.
type CouponList struct {
	Items  []models.Coupon `json:"items"`
	Cursor string          `json:"cursor"`
}

// Catalog reads a buyer's coupons. Claiming and releasing stay with the
// Resolver; the catalog never writes.
type Catalog interface {
	ListForUser(ctx context.Context, params CouponListParams) (*CouponList, error)
}

type catalog struct {
	db *gorm.DB
}

// NewCatalog builds the coupon catalog.
func NewCatalog(db *gorm.DB) (Catalog, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupon catalog requires a database")
	}
	return &catalog{db: db}, nil
}

func (c *catalog) ListForUser(ctx context.Context, params CouponListParams) (*CouponList, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := c.db.WithContext(ctx).
		Model(&models.Coupon{}).
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

	var coupons []models.Coupon
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&coupons).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}

	next := ""
	if len(coupons) > normalized {
		coupons = coupons[:normalized]
		last := coupons[len(coupons)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &CouponList{Items: coupons, Cursor: next}, nil
}

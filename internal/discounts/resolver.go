package discounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
)

// Request carries the buyer's discount selection for one purchase. At most
// one of PromotionCode, CouponCode, or PointsRequested may be set.
type Request struct {
	UserID          uuid.UUID
	EventID         uuid.UUID
	PromotionCode   string
	CouponCode      string
	PointsRequested int
	TotalAmount     decimal.Decimal
}

// Applied is the resolved outcome recorded on the transaction.
type Applied struct {
	DiscountAmount decimal.Decimal
	PointsUsed     int
	PromotionID    *uuid.UUID
	CouponID       *uuid.UUID
}

// PointsConsumer drains loyalty points inside the purchase transaction.
type PointsConsumer interface {
	BalanceIn(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) (int, error)
	Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, now time.Time) error
}

// Resolver validates and claims a discount inside the purchase transaction,
// and releases claims during rollback.
type Resolver interface {
	Apply(ctx context.Context, tx *gorm.DB, req Request, now time.Time) (*Applied, error)
	Release(ctx context.Context, tx *gorm.DB, promotionID, couponID *uuid.UUID) error
}

type resolver struct {
	points PointsConsumer
}

// NewResolver builds the discount resolver.
func NewResolver(points PointsConsumer) (Resolver, error) {
	if points == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "discount resolver requires a points consumer")
	}
	return &resolver{points: points}, nil
}

func (r *resolver) Apply(ctx context.Context, tx *gorm.DB, req Request, now time.Time) (*Applied, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required to apply discounts")
	}

	selected := 0
	if strings.TrimSpace(req.PromotionCode) != "" {
		selected++
	}
	if strings.TrimSpace(req.CouponCode) != "" {
		selected++
	}
	if req.PointsRequested > 0 {
		selected++
	}
	if selected > 1 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "only one discount method can be used per transaction")
	}
	if req.PointsRequested < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points to use cannot be negative")
	}

	applied := &Applied{DiscountAmount: decimal.Zero}
	switch {
	case strings.TrimSpace(req.PromotionCode) != "":
		return r.applyPromotion(ctx, tx, req, now)
	case strings.TrimSpace(req.CouponCode) != "":
		return r.applyCoupon(ctx, tx, req, now)
	case req.PointsRequested > 0:
		return r.applyPoints(ctx, tx, req, now)
	}
	return applied, nil
}

func (r *resolver) applyPromotion(ctx context.Context, tx *gorm.DB, req Request, now time.Time) (*Applied, error) {
	var promo models.Promotion
	err := tx.WithContext(ctx).
		Where("event_id = ? AND UPPER(code) = UPPER(?)", req.EventID, strings.TrimSpace(req.PromotionCode)).
		First(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion code is not valid for this event")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}
	if now.Before(promo.ValidFrom) || now.After(promo.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion code is not active")
	}

	// The guarded increment is what makes the last slot single-winner.
	res := tx.WithContext(ctx).Exec(`
		UPDATE promotions
		SET current_usage = current_usage + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND current_usage < max_usage
	`, promo.ID)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "claim promotion slot")
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion code has been fully redeemed")
	}

	promoID := promo.ID
	return &Applied{
		DiscountAmount: discountValue(promo.DiscountPercentage, promo.DiscountAmount, req.TotalAmount),
		PromotionID:    &promoID,
	}, nil
}

func (r *resolver) applyCoupon(ctx context.Context, tx *gorm.DB, req Request, now time.Time) (*Applied, error) {
	var coupon models.Coupon
	err := tx.WithContext(ctx).
		Where("user_id = ? AND UPPER(code) = UPPER(?)", req.UserID, strings.TrimSpace(req.CouponCode)).
		First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code is not valid")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code is not active")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE coupons
		SET is_used = TRUE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_used = FALSE
	`, coupon.ID)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "claim coupon")
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon has already been used")
	}

	couponID := coupon.ID
	return &Applied{
		DiscountAmount: discountValue(coupon.DiscountPercentage, coupon.DiscountAmount, req.TotalAmount),
		CouponID:       &couponID,
	}, nil
}

func (r *resolver) applyPoints(ctx context.Context, tx *gorm.DB, req Request, now time.Time) (*Applied, error) {
	// The requested amount must fit the balance before any capping; asking
	// for more points than the buyer owns is an error, not a clamp.
	balance, err := r.points.BalanceIn(ctx, tx, req.UserID, now)
	if err != nil {
		return nil, err
	}
	if req.PointsRequested > balance {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient points balance")
	}

	// Never burn more points than the order is worth.
	use := req.PointsRequested
	if max := int(req.TotalAmount.IntPart()); use > max {
		use = max
	}
	if use <= 0 {
		return &Applied{DiscountAmount: decimal.Zero}, nil
	}
	if err := r.points.Consume(ctx, tx, req.UserID, use, now); err != nil {
		return nil, err
	}
	return &Applied{DiscountAmount: decimal.Zero, PointsUsed: use}, nil
}

// Release hands back claimed discount slots. It is tolerant of repeats so
// rollback paths stay idempotent.
func (r *resolver) Release(ctx context.Context, tx *gorm.DB, promotionID, couponID *uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to release discounts")
	}
	if promotionID != nil {
		res := tx.WithContext(ctx).Exec(`
			UPDATE promotions
			SET current_usage = current_usage - 1,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND current_usage > 0
		`, *promotionID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release promotion slot")
		}
	}
	if couponID != nil {
		res := tx.WithContext(ctx).Exec(`
			UPDATE coupons
			SET is_used = FALSE,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND is_used = TRUE
		`, *couponID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release coupon")
		}
	}
	return nil
}

func discountValue(percentage *int, amount *decimal.Decimal, total decimal.Decimal) decimal.Decimal {
	if percentage != nil {
		return total.Mul(decimal.NewFromInt(int64(*percentage))).Div(decimal.NewFromInt(100)).Round(2)
	}
	if amount != nil {
		return *amount
	}
	return decimal.Zero
}

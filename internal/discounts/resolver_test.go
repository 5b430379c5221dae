package discounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
)

type fakeConsumer struct {
	balance  int
	consumed []int
	err      error
}

func (f *fakeConsumer) BalanceIn(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) (int, error) {
	return f.balance, nil
}

func (f *fakeConsumer) Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, now time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.consumed = append(f.consumed, amount)
	return nil
}

func setupDiscountTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:discounts_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	promotions := `
CREATE TABLE IF NOT EXISTS promotions (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  code TEXT NOT NULL,
  discount_percentage INTEGER,
  discount_amount NUMERIC,
  max_usage INTEGER NOT NULL,
  current_usage INTEGER NOT NULL DEFAULT 0,
  valid_from DATETIME NOT NULL,
  valid_until DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	coupons := `
CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  code TEXT NOT NULL,
  discount_percentage INTEGER,
  discount_amount NUMERIC,
  is_used BOOLEAN NOT NULL DEFAULT FALSE,
  valid_from DATETIME NOT NULL,
  valid_until DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, ddl := range []string{promotions, coupons} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func seedPromotion(t *testing.T, db *gorm.DB, eventID uuid.UUID, code string, pct *int, amount *decimal.Decimal, maxUsage, currentUsage int, from, until time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := db.Exec(`
		INSERT INTO promotions (id, event_id, code, discount_percentage, discount_amount, max_usage, current_usage, valid_from, valid_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, eventID, code, pct, amount, maxUsage, currentUsage, from, until).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}
	return id
}

func seedCoupon(t *testing.T, db *gorm.DB, userID uuid.UUID, code string, amount decimal.Decimal, used bool, from, until time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := db.Exec(`
		INSERT INTO coupons (id, user_id, code, discount_amount, is_used, valid_from, valid_until)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, userID, code, amount, used, from, until).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return id
}

func newResolver(t *testing.T, consumer PointsConsumer) Resolver {
	t.Helper()
	if consumer == nil {
		consumer = &fakeConsumer{}
	}
	r, err := NewResolver(consumer)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestResolverRejectsMultipleMethods(t *testing.T) {
	db := setupDiscountTestDB(t)
	r := newResolver(t, nil)

	_, err := r.Apply(context.Background(), db, Request{
		UserID:        uuid.New(),
		EventID:       uuid.New(),
		PromotionCode: "LAUNCH",
		CouponCode:    "WELCOME",
		TotalAmount:   decimal.NewFromInt(100),
	}, time.Now())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestResolverPromotionPercentage(t *testing.T) {
	db := setupDiscountTestDB(t)
	r := newResolver(t, nil)

	now := time.Now()
	eventID := uuid.New()
	pct := 25
	promoID := seedPromotion(t, db, eventID, "LAUNCH", &pct, nil, 10, 0, now.Add(-time.Hour), now.Add(time.Hour))

	applied, err := r.Apply(context.Background(), db, Request{
		UserID:        uuid.New(),
		EventID:       eventID,
		PromotionCode: "launch",
		TotalAmount:   decimal.NewFromInt(200),
	}, now)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !applied.DiscountAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected discount 50, got %s", applied.DiscountAmount)
	}
	if applied.PromotionID == nil || *applied.PromotionID != promoID {
		t.Fatalf("expected promotion %s recorded, got %v", promoID, applied.PromotionID)
	}

	var promo models.Promotion
	if err := db.Where("id = ?", promoID).First(&promo).Error; err != nil {
		t.Fatalf("load promotion: %v", err)
	}
	if promo.CurrentUsage != 1 {
		t.Fatalf("expected usage 1, got %d", promo.CurrentUsage)
	}
}

func TestResolverPromotionLastSlotSingleWinner(t *testing.T) {
	db := setupDiscountTestDB(t)
	r := newResolver(t, nil)

	now := time.Now()
	eventID := uuid.New()
	amount := decimal.NewFromInt(20)
	seedPromotion(t, db, eventID, "FINAL", nil, &amount, 3, 2, now.Add(-time.Hour), now.Add(time.Hour))

	req := Request{UserID: uuid.New(), EventID: eventID, PromotionCode: "FINAL", TotalAmount: decimal.NewFromInt(100)}
	if _, err := r.Apply(context.Background(), db, req, now); err != nil {
		t.Fatalf("last slot should be claimable: %v", err)
	}

	_, err := r.Apply(context.Background(), db, req, now)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict once slots run out, got %v", err)
	}
}

func TestResolverPromotionOutsideWindow(t *testing.T) {
	db := setupDiscountTestDB(t)
	r := newResolver(t, nil)

	now := time.Now()
	eventID := uuid.New()
	pct := 10
	seedPromotion(t, db, eventID, "EARLY", &pct, nil, 10, 0, now.Add(time.Hour), now.Add(2*time.Hour))

	_, err := r.Apply(context.Background(), db, Request{
		UserID:        uuid.New(),
		EventID:       eventID,
		PromotionCode: "EARLY",
		TotalAmount:   decimal.NewFromInt(100),
	}, now)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for inactive promotion, got %v", err)
	}
}

func TestResolverCouponSingleUse(t *testing.T) {
	db := setupDiscountTestDB(t)
	r := newResolver(t, nil)

	now := time.Now()
	userID := uuid.New()
	couponID := seedCoupon(t, db, userID, "WELCOME", decimal.NewFromInt(30), false, now.Add(-time.Hour), now.Add(time.Hour))

	req := Request{UserID: userID, EventID: uuid.New(), CouponCode: "WELCOME", TotalAmount: decimal.NewFromInt(100)}
	applied, err := r.Apply(context.Background(), db, req, now)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !applied.DiscountAmount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected discount 30, got %s", applied.DiscountAmount)
	}
	if applied.CouponID == nil || *applied.CouponID != couponID {
		t.Fatalf("expected coupon %s recorded, got %v", couponID, applied.CouponID)
	}

	_, err = r.Apply(context.Background(), db, req, now)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for reused coupon, got %v", err)
	}
}

func TestResolverCouponBelongsToUser(t *testing.T) {
	db := setupDiscountTestDB(t)
	r := newResolver(t, nil)

	now := time.Now()
	seedCoupon(t, db, uuid.New(), "WELCOME", decimal.NewFromInt(30), false, now.Add(-time.Hour), now.Add(time.Hour))

	_, err := r.Apply(context.Background(), db, Request{
		UserID:      uuid.New(),
		EventID:     uuid.New(),
		CouponCode:  "WELCOME",
		TotalAmount: decimal.NewFromInt(100),
	}, now)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for another user's coupon, got %v", err)
	}
}

func TestResolverPointsCappedAtOrderTotal(t *testing.T) {
	db := setupDiscountTestDB(t)
	consumer := &fakeConsumer{balance: 1000}
	r := newResolver(t, consumer)

	applied, err := r.Apply(context.Background(), db, Request{
		UserID:          uuid.New(),
		EventID:         uuid.New(),
		PointsRequested: 500,
		TotalAmount:     decimal.NewFromInt(120),
	}, time.Now())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.PointsUsed != 120 {
		t.Fatalf("expected 120 points used, got %d", applied.PointsUsed)
	}
	if len(consumer.consumed) != 1 || consumer.consumed[0] != 120 {
		t.Fatalf("expected one consume of 120, got %v", consumer.consumed)
	}
}

func TestResolverPointsRequestedBeyondBalance(t *testing.T) {
	db := setupDiscountTestDB(t)
	consumer := &fakeConsumer{balance: 5000}
	r := newResolver(t, consumer)

	// The order-total cap would bring the spend down to 4000, well inside
	// the balance, but the request itself overdraws and must be rejected.
	_, err := r.Apply(context.Background(), db, Request{
		UserID:          uuid.New(),
		EventID:         uuid.New(),
		PointsRequested: 10000,
		TotalAmount:     decimal.NewFromInt(4000),
	}, time.Now())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for overdrawn request, got %v", err)
	}
	if len(consumer.consumed) != 0 {
		t.Fatalf("no points may be consumed, got %v", consumer.consumed)
	}
}

func TestResolverPointsConsumerErrorPropagates(t *testing.T) {
	db := setupDiscountTestDB(t)
	consumer := &fakeConsumer{balance: 100, err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient points balance")}
	r := newResolver(t, consumer)

	_, err := r.Apply(context.Background(), db, Request{
		UserID:          uuid.New(),
		EventID:         uuid.New(),
		PointsRequested: 50,
		TotalAmount:     decimal.NewFromInt(100),
	}, time.Now())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestResolverReleaseRestoresClaims(t *testing.T) {
	db := setupDiscountTestDB(t)
	r := newResolver(t, nil)

	now := time.Now()
	eventID := uuid.New()
	userID := uuid.New()
	pct := 10
	promoID := seedPromotion(t, db, eventID, "LAUNCH", &pct, nil, 5, 1, now.Add(-time.Hour), now.Add(time.Hour))
	couponID := seedCoupon(t, db, userID, "WELCOME", decimal.NewFromInt(10), true, now.Add(-time.Hour), now.Add(time.Hour))

	if err := r.Release(context.Background(), db, &promoID, &couponID); err != nil {
		t.Fatalf("Release: %v", err)
	}

	var promo models.Promotion
	if err := db.Where("id = ?", promoID).First(&promo).Error; err != nil {
		t.Fatalf("load promotion: %v", err)
	}
	if promo.CurrentUsage != 0 {
		t.Fatalf("expected usage back to 0, got %d", promo.CurrentUsage)
	}

	var coupon models.Coupon
	if err := db.Where("id = ?", couponID).First(&coupon).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if coupon.IsUsed {
		t.Fatal("expected coupon to be reusable again")
	}

	// A second release is a no-op.
	if err := r.Release(context.Background(), db, &promoID, &couponID); err != nil {
		t.Fatalf("repeat Release: %v", err)
	}
	if err := db.Where("id = ?", promoID).First(&promo).Error; err != nil {
		t.Fatalf("reload promotion: %v", err)
	}
	if promo.CurrentUsage != 0 {
		t.Fatalf("release must not go below zero, got %d", promo.CurrentUsage)
	}
}

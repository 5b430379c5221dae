package discounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func seedCouponAt(t *testing.T, db *gorm.DB, userID uuid.UUID, code string, used bool, createdAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := db.Exec(`
		INSERT INTO coupons (id, user_id, code, discount_amount, is_used, valid_from, valid_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, userID, code, decimal.NewFromInt(10), used, createdAt.Add(-time.Hour), createdAt.Add(24*time.Hour), createdAt).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return id
}

func TestCatalogListScopesToUserAndPaginates(t *testing.T) {
	db := setupDiscountTestDB(t)
	catalog, err := NewCatalog(db)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	base := time.Now().Truncate(time.Second)
	userID := uuid.New()
	oldest := seedCouponAt(t, db, userID, "SPRING", true, base.Add(-3*time.Hour))
	middle := seedCouponAt(t, db, userID, "SUMMER", false, base.Add(-2*time.Hour))
	newest := seedCouponAt(t, db, userID, "AUTUMN", false, base.Add(-time.Hour))
	seedCouponAt(t, db, uuid.New(), "OTHER", false, base)

	page, err := catalog.ListForUser(context.Background(), CouponListParams{UserID: userID, Limit: 2})
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 coupons, got %d", len(page.Items))
	}
	if page.Items[0].ID != newest || page.Items[1].ID != middle {
		t.Fatalf("expected newest first, got %v", page.Items)
	}
	if page.Cursor == "" {
		t.Fatal("expected a cursor for the next page")
	}

	rest, err := catalog.ListForUser(context.Background(), CouponListParams{UserID: userID, Limit: 2, Cursor: page.Cursor})
	if err != nil {
		t.Fatalf("ListForUser page 2: %v", err)
	}
	if len(rest.Items) != 1 || rest.Items[0].ID != oldest {
		t.Fatalf("expected only the oldest coupon, got %v", rest.Items)
	}
	if rest.Cursor != "" {
		t.Fatalf("expected no further pages, got %q", rest.Cursor)
	}
	// Used coupons stay visible in the listing.
	if !rest.Items[0].IsUsed {
		t.Fatal("expected the used coupon to be listed")
	}
}

func TestCatalogListRequiresUser(t *testing.T) {
	db := setupDiscountTestDB(t)
	catalog, err := NewCatalog(db)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if _, err := catalog.ListForUser(context.Background(), CouponListParams{}); err == nil {
		t.Fatal("expected error without a user id")
	}
}

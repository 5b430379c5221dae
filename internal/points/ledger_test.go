package points

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
)

func setupPointsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:points_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS point_grants (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  remaining_amount INTEGER NOT NULL,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func seedGrant(t *testing.T, db *gorm.DB, userID uuid.UUID, amount, remaining int, expiresAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := db.Exec(`
		INSERT INTO point_grants (id, user_id, amount, remaining_amount, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, userID, amount, remaining, expiresAt).Error; err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	return id
}

func grantRemaining(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var grant models.PointGrant
	if err := db.Where("id = ?", id).First(&grant).Error; err != nil {
		t.Fatalf("load grant: %v", err)
	}
	return grant.RemainingAmount
}

func TestLedgerConsumeDrainsSoonestExpiryFirst(t *testing.T) {
	db := setupPointsTestDB(t)
	ledger, err := NewLedger(db, 3)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	now := time.Now()
	userID := uuid.New()
	late := seedGrant(t, db, userID, 100, 100, now.Add(60*24*time.Hour))
	soon := seedGrant(t, db, userID, 50, 50, now.Add(7*24*time.Hour))

	if err := ledger.Consume(context.Background(), db, userID, 70, now); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	if got := grantRemaining(t, db, soon); got != 0 {
		t.Fatalf("soonest grant should be drained, got %d", got)
	}
	if got := grantRemaining(t, db, late); got != 80 {
		t.Fatalf("later grant should cover the remainder, got %d", got)
	}
}

func TestLedgerConsumeSkipsExpiredGrants(t *testing.T) {
	db := setupPointsTestDB(t)
	ledger, err := NewLedger(db, 3)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	now := time.Now()
	userID := uuid.New()
	expired := seedGrant(t, db, userID, 100, 100, now.Add(-time.Hour))
	active := seedGrant(t, db, userID, 30, 30, now.Add(24*time.Hour))

	if err := ledger.Consume(context.Background(), db, userID, 30, now); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got := grantRemaining(t, db, expired); got != 100 {
		t.Fatalf("expired grant must not be touched, got %d", got)
	}
	if got := grantRemaining(t, db, active); got != 0 {
		t.Fatalf("active grant should be drained, got %d", got)
	}
}

func TestLedgerConsumeInsufficientBalance(t *testing.T) {
	db := setupPointsTestDB(t)
	ledger, err := NewLedger(db, 3)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	now := time.Now()
	userID := uuid.New()
	seedGrant(t, db, userID, 20, 20, now.Add(24*time.Hour))

	consumeErr := ledger.Consume(context.Background(), db, userID, 50, now)
	typed := pkgerrors.As(consumeErr)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", consumeErr)
	}
}

func TestLedgerBalanceCountsOnlyActiveGrants(t *testing.T) {
	db := setupPointsTestDB(t)
	ledger, err := NewLedger(db, 3)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	now := time.Now()
	userID := uuid.New()
	seedGrant(t, db, userID, 100, 40, now.Add(24*time.Hour))
	seedGrant(t, db, userID, 50, 50, now.Add(-time.Hour))
	seedGrant(t, db, uuid.New(), 99, 99, now.Add(24*time.Hour))

	balance, err := ledger.Balance(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 40 {
		t.Fatalf("expected balance 40, got %d", balance)
	}
}

func TestLedgerRefundCreatesFreshGrant(t *testing.T) {
	db := setupPointsTestDB(t)
	ledger, err := NewLedger(db, 3)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	now := time.Now()
	userID := uuid.New()
	if err := ledger.Refund(context.Background(), db, userID, 35, now); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	var grants []models.PointGrant
	if err := db.Where("user_id = ?", userID).Find(&grants).Error; err != nil {
		t.Fatalf("load grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("expected one grant, got %d", len(grants))
	}
	if grants[0].RemainingAmount != 35 || grants[0].Amount != 35 {
		t.Fatalf("unexpected grant amounts: %+v", grants[0])
	}
	wantExpiry := now.AddDate(0, 3, 0)
	if diff := grants[0].ExpiresAt.Sub(wantExpiry); diff > time.Minute || diff < -time.Minute {
		t.Fatalf("expected expiry near %v, got %v", wantExpiry, grants[0].ExpiresAt)
	}
}

func TestLedgerHistoryPaginates(t *testing.T) {
	db := setupPointsTestDB(t)
	ledger, err := NewLedger(db, 3)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	now := time.Now()
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		id := uuid.New()
		if err := db.Exec(`
			INSERT INTO point_grants (id, user_id, amount, remaining_amount, expires_at, created_at, updated_at)
			VALUES (?, ?, 10, 10, ?, ?, ?)
		`, id, userID, now.Add(24*time.Hour), now.Add(time.Duration(i)*time.Second), now).Error; err != nil {
			t.Fatalf("seed grant: %v", err)
		}
	}

	first, err := ledger.History(context.Background(), HistoryParams{UserID: userID, Limit: 2})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(first.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(first.Items))
	}
	if first.Cursor == "" {
		t.Fatal("expected a next cursor")
	}

	second, err := ledger.History(context.Background(), HistoryParams{UserID: userID, Limit: 2, Cursor: first.Cursor})
	if err != nil {
		t.Fatalf("History page 2: %v", err)
	}
	if len(second.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(second.Items))
	}
	if second.Cursor != "" {
		t.Fatalf("expected empty cursor, got %q", second.Cursor)
	}
}

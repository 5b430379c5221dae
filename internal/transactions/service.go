package transactions

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/internal/discounts"
	"github.com/tiketahq/tiketa-backend/internal/events"
	"github.com/tiketahq/tiketa-backend/internal/inventory"
	"github.com/tiketahq/tiketa-backend/pkg/config"
	"github.com/tiketahq/tiketa-backend/pkg/db"
	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	"github.com/tiketahq/tiketa-backend/pkg/enums"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
)

const invoiceAttempts = 3

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PointsRefunder returns consumed points as a fresh grant during rollback.
type PointsRefunder interface {
	Refund(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int, now time.Time) error
}

// ProofStore persists uploaded payment proofs and returns a public URL.
type ProofStore interface {
	Upload(ctx context.Context, objectName, contentType string, body io.Reader) (string, error)
}

// Notifier delivers in-app notifications after a decision commits.
type Notifier interface {
	TransactionDecided(ctx context.Context, txn *models.Transaction, accepted bool, reason string) error
}

// ServiceParams wires the purchase orchestrator.
type ServiceParams struct {
	Tx        TxRunner
	Repo      Repository
	Events    events.Repository
	Inventory inventory.Engine
	Discounts discounts.Resolver
	Points    PointsRefunder
	Proofs    ProofStore
	Notifier  Notifier
	Logger    *logger.Logger
	Checkout  config.CheckoutConfig
	BatchSize int

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Service owns the transaction lifecycle from creation to terminal status.
type Service struct {
	tx        TxRunner
	repo      Repository
	events    events.Repository
	inventory inventory.Engine
	discounts discounts.Resolver
	points    PointsRefunder
	proofs    ProofStore
	notifier  Notifier
	logg      *logger.Logger
	checkout  config.CheckoutConfig
	batchSize int
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil || params.Repo == nil || params.Events == nil ||
		params.Inventory == nil || params.Discounts == nil || params.Points == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transactions service is missing dependencies")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Checkout.PaymentWindow <= 0 {
		params.Checkout.PaymentWindow = 2 * time.Hour
	}
	if params.Checkout.ConfirmationWindow <= 0 {
		params.Checkout.ConfirmationWindow = 72 * time.Hour
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 200
	}
	return &Service{
		tx:        params.Tx,
		repo:      params.Repo,
		events:    params.Events,
		inventory: params.Inventory,
		discounts: params.Discounts,
		points:    params.Points,
		proofs:    params.Proofs,
		notifier:  params.Notifier,
		logg:      params.Logger,
		checkout:  params.Checkout,
		batchSize: params.BatchSize,
		now:       params.Now,
	}, nil
}

// Create reserves stock, claims the selected discount, and records the
// transaction. The whole purchase is one database transaction; an invoice
// number collision retries from scratch.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Transaction, error) {
	if params.UserID == uuid.Nil || params.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and event are required")
	}
	if len(params.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one ticket is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(params.Items))
	for _, item := range params.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket quantity must be positive")
		}
		if _, dup := seen[item.TicketTypeID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate ticket type in request")
		}
		seen[item.TicketTypeID] = struct{}{}
	}

	// Discount exclusivity is decided here, before any stock is touched.
	selected := 0
	if strings.TrimSpace(params.PromotionCode) != "" {
		selected++
	}
	if strings.TrimSpace(params.CouponCode) != "" {
		selected++
	}
	if params.PointsToUse > 0 {
		selected++
	}
	if selected > 1 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "only one discount method can be used per transaction")
	}

	var created *models.Transaction
	var lastErr error
	for attempt := 0; attempt < invoiceAttempts; attempt++ {
		created, lastErr = s.createOnce(ctx, params)
		if lastErr == nil {
			return created, nil
		}
		if !db.IsUniqueViolation(lastErr, "ux_transactions_invoice") {
			return nil, lastErr
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "could not allocate a unique invoice number")
}

func (s *Service) createOnce(ctx context.Context, params CreateParams) (*models.Transaction, error) {
	now := s.now()
	invoice, err := NewInvoiceNumber(now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invoice number")
	}

	var created *models.Transaction
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		eventsRepo := s.events.WithTx(tx)
		if _, err := eventsRepo.FindEventForSale(ctx, params.EventID, now); err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(params.Items))
		for _, item := range params.Items {
			ids = append(ids, item.TicketTypeID)
		}
		ticketTypes, err := eventsRepo.FindTicketTypes(ctx, params.EventID, ids)
		if err != nil {
			return err
		}
		priceByID := make(map[uuid.UUID]decimal.Decimal, len(ticketTypes))
		for _, tt := range ticketTypes {
			priceByID[tt.ID] = tt.Price
		}

		total := decimal.Zero
		lines := make([]inventory.Line, 0, len(params.Items))
		items := make([]models.TransactionItem, 0, len(params.Items))
		for _, item := range params.Items {
			price, ok := priceByID[item.TicketTypeID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ticket type not found for this event")
			}
			subtotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(subtotal)
			lines = append(lines, inventory.Line{TicketTypeID: item.TicketTypeID, Quantity: item.Quantity})
			items = append(items, models.TransactionItem{
				ID:           uuid.New(),
				TicketTypeID: item.TicketTypeID,
				Quantity:     item.Quantity,
				PriceAtBuy:   price,
				Subtotal:     subtotal,
			})
		}

		if err := s.inventory.Reserve(ctx, tx, params.EventID, lines); err != nil {
			return err
		}

		applied, err := s.discounts.Apply(ctx, tx, discounts.Request{
			UserID:          params.UserID,
			EventID:         params.EventID,
			PromotionCode:   params.PromotionCode,
			CouponCode:      params.CouponCode,
			PointsRequested: params.PointsToUse,
			TotalAmount:     total,
		}, now)
		if err != nil {
			return err
		}

		final := total.Sub(applied.DiscountAmount)
		if final.IsNegative() {
			final = decimal.Zero
		}
		final = final.Sub(decimal.NewFromInt(int64(applied.PointsUsed)))
		if final.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInternal, "final amount went negative")
		}

		status := enums.TransactionStatusWaitingPayment
		if final.IsZero() {
			// Nothing to pay, so nothing to prove. Skip straight to the
			// organizer's queue.
			status = enums.TransactionStatusWaitingConfirmation
		}

		txn := models.Transaction{
			ID:              uuid.New(),
			UserID:          params.UserID,
			EventID:         params.EventID,
			InvoiceNumber:   invoice,
			TotalAmount:     total,
			DiscountAmount:  applied.DiscountAmount,
			PointsUsed:      applied.PointsUsed,
			FinalAmount:     final,
			PromotionID:     applied.PromotionID,
			CouponID:        applied.CouponID,
			Status:          status,
			PaymentDeadline: now.Add(s.checkout.PaymentWindow),
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, &txn); err != nil {
			return err
		}
		for i := range items {
			items[i].TransactionID = txn.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return err
		}
		txn.Items = items
		created = &txn
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.logg != nil {
		lctx := s.logg.WithTransactionID(ctx, created.ID.String())
		lctx = s.logg.WithFields(lctx, map[string]any{
			"invoice": created.InvoiceNumber,
			"status":  created.Status.String(),
			"final":   created.FinalAmount.String(),
		})
		s.logg.Info(lctx, "transaction.created")
	}
	return created, nil
}

// GetForUser returns the transaction detail, hiding other buyers' rows.
func (s *Service) GetForUser(ctx context.Context, userID, transactionID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindDetail(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

// ListForUser pages the buyer's own transactions.
func (s *Service) ListForUser(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	params.OrganizerID = uuid.Nil
	return s.repo.List(ctx, params)
}

// ListForOrganizer pages transactions across the organizer's events.
func (s *Service) ListForOrganizer(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.OrganizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	params.UserID = uuid.Nil
	return s.repo.List(ctx, params)
}

// UploadProof stores the buyer's payment proof and moves the transaction to
// the organizer's confirmation queue.
func (s *Service) UploadProof(ctx context.Context, userID, transactionID uuid.UUID, filename, contentType string, body io.Reader) (*models.Transaction, error) {
	if s.proofs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "proof storage is not configured")
	}

	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if txn.Status != enums.TransactionStatusWaitingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not awaiting payment")
	}
	now := s.now()
	if now.After(txn.PaymentDeadline) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment deadline has passed")
	}

	objectName := fmt.Sprintf("%s/%s-%s", "payment-proofs", txn.ID, filename)
	proofURL, err := s.proofs.Upload(ctx, objectName, contentType, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment proof")
	}

	updated, err := s.repo.SetPaymentProof(ctx, txn.ID, proofURL)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not awaiting payment")
	}
	return s.repo.FindByID(ctx, txn.ID)
}

// Cancel lets the buyer abandon a transaction that still awaits payment.
// Stock, discount slots, and points all come back in the same transaction.
func (s *Service) Cancel(ctx context.Context, userID, transactionID uuid.UUID) error {
	txn, err := s.repo.FindDetail(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if txn.Status != enums.TransactionStatusWaitingPayment {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only transactions awaiting payment can be canceled")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, txn.ID, enums.TransactionStatusWaitingPayment, enums.TransactionStatusCanceled)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already left the payment stage")
		}
		return s.rollback(ctx, tx, txn)
	})
}

// Decide records the organizer's accept or reject for a transaction awaiting
// confirmation. Rejection returns everything the purchase claimed; the reason
// travels to the buyer's notification and may be empty.
func (s *Service) Decide(ctx context.Context, organizerID, transactionID uuid.UUID, accept bool, reason string) (*models.Transaction, error) {
	txn, err := s.repo.FindDetail(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	owns, err := s.events.IsOrganizer(ctx, txn.EventID, organizerID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another organizer's event")
	}
	if txn.Status != enums.TransactionStatusWaitingConfirmation {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not awaiting confirmation")
	}

	target := enums.TransactionStatusDone
	if !accept {
		target = enums.TransactionStatusRejected
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, txn.ID, enums.TransactionStatusWaitingConfirmation, target)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not awaiting confirmation")
		}
		if !accept {
			return s.rollback(ctx, tx, txn)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	txn.Status = target
	s.notifyDecision(ctx, txn, accept, reason)
	return s.repo.FindDetail(ctx, txn.ID)
}

// ExpireOverdue moves unpaid transactions past their deadline to expired and
// returns what they held. Safe to run repeatedly; the guarded status update
// makes each row single-winner.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.repo.FindExpiredCandidates(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, candidates, enums.TransactionStatusWaitingPayment, enums.TransactionStatusExpired)
}

// CancelStale cancels transactions that sat in the confirmation queue past
// the staleness window without an organizer decision.
func (s *Service) CancelStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.checkout.ConfirmationWindow)
	candidates, err := s.repo.FindStaleCandidates(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, candidates, enums.TransactionStatusWaitingConfirmation, enums.TransactionStatusCanceled)
}

func (s *Service) sweep(ctx context.Context, candidates []models.Transaction, from, to enums.TransactionStatus) (int, error) {
	var swept int
	var errs error
	for i := range candidates {
		txn := candidates[i]
		var moved bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			moved, err = s.repo.WithTx(tx).UpdateStatusIf(ctx, txn.ID, from, to)
			if err != nil {
				return err
			}
			if !moved {
				// Another sweeper or the user got there first.
				return nil
			}
			return s.rollback(ctx, tx, &txn)
		})
		if err != nil {
			if s.logg != nil {
				lctx := s.logg.WithTransactionID(ctx, txn.ID.String())
				s.logg.Error(lctx, "transaction.sweep_failed", err)
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if moved {
			swept++
		}
	}
	return swept, errs
}

// rollback undoes a purchase's side effects inside the caller's transaction:
// stock and seats come back, the discount slot reopens, and consumed points
// return as a fresh grant.
func (s *Service) rollback(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	lines := make([]inventory.Line, 0, len(txn.Items))
	for _, item := range txn.Items {
		lines = append(lines, inventory.Line{TicketTypeID: item.TicketTypeID, Quantity: item.Quantity})
	}
	if len(lines) > 0 {
		if err := s.inventory.Restore(ctx, tx, txn.EventID, lines); err != nil {
			return err
		}
	}
	if err := s.discounts.Release(ctx, tx, txn.PromotionID, txn.CouponID); err != nil {
		return err
	}
	if txn.PointsUsed > 0 {
		if err := s.points.Refund(ctx, tx, txn.UserID, txn.PointsUsed, s.now()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyDecision(ctx context.Context, txn *models.Transaction, accepted bool, reason string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TransactionDecided(ctx, txn, accepted, reason); err != nil && s.logg != nil {
		lctx := s.logg.WithTransactionID(ctx, txn.ID.String())
		s.logg.Error(lctx, "transaction.notify_failed", err)
	}
}

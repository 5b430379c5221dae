package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	"github.com/tiketahq/tiketa-backend/pkg/enums"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
)

// Publisher turns transaction decisions into in-app notifications for the
// buyer. Delivery failures are the caller's to log; the purchase flow never
// blocks on a notification.
type Publisher struct {
	repo Repository
	logg *logger.Logger
}

// NewPublisher builds a notification publisher.
func NewPublisher(repo Repository, logg *logger.Logger) (*Publisher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &Publisher{repo: repo, logg: logg}, nil
}

type transactionDecidedPayload struct {
	TransactionID  uuid.UUID `json:"transaction_id"`
	InvoiceNumber  string    `json:"invoice_number"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	PointsRefunded int       `json:"points_refunded,omitempty"`
}

// TransactionDecided records an accepted/rejected notification for the buyer.
// The reason only applies to rejections and may be empty.
func (p *Publisher) TransactionDecided(ctx context.Context, txn *models.Transaction, accepted bool, reason string) error {
	if txn == nil {
		return fmt.Errorf("transaction required")
	}

	kind := enums.NotificationKindTransactionAccepted
	title := "Payment accepted"
	message := fmt.Sprintf("Your payment for invoice %s has been accepted. Your tickets are confirmed.", txn.InvoiceNumber)
	if !accepted {
		kind = enums.NotificationKindTransactionRejected
		title = "Payment rejected"
		message = fmt.Sprintf("Your payment for invoice %s was rejected. Seats, discounts, and points have been returned.", txn.InvoiceNumber)
		if reason != "" {
			message = fmt.Sprintf("Your payment for invoice %s was rejected: %s. Seats, discounts, and points have been returned.", txn.InvoiceNumber, reason)
		}
	}

	payload := transactionDecidedPayload{
		TransactionID: txn.ID,
		InvoiceNumber: txn.InvoiceNumber,
		Status:        txn.Status.String(),
	}
	if !accepted {
		payload.Reason = reason
		payload.PointsRefunded = txn.PointsUsed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}

	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  txn.UserID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Data:    data,
	}
	if err := p.repo.Create(ctx, notification); err != nil {
		return err
	}
	if p.logg != nil {
		lctx := p.logg.WithTransactionID(ctx, txn.ID.String())
		p.logg.Info(lctx, "notification.transaction_decided")
	}
	return nil
}

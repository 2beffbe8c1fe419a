package domain

import (
	"context"
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

type PaymentSource string

const (
	PaymentSourceWebhook PaymentSource = "webhook"
	PaymentSourceSync    PaymentSource = "sync"
)

// Payment records an iCount invoice, either pushed by the webhook or
// pulled by the out-of-band portal sync. DocID is the iCount document
// number and is unique per payment.
type Payment struct {
	ID                  string        `json:"id"`
	DocID               string        `json:"doc_id"`
	Amount              float64       `json:"amount"`
	CustomerName        string        `json:"customer_name"`
	CustomerEmail       string        `json:"customer_email"`
	DetectedPackageType PackageTier   `json:"detected_package_type"`
	Status              PaymentStatus `json:"status"`
	Source              PaymentSource `json:"source"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

type PaymentRepository interface {
	// Create returns ErrDuplicatePayment when DocID already exists.
	Create(ctx context.Context, payment *Payment) error
	GetByDocID(ctx context.Context, docID string) (*Payment, error)
	List(ctx context.Context, limit, offset int) ([]*Payment, error)
	UpdateStatus(ctx context.Context, docID string, status PaymentStatus) error
}

type PaymentUsecase interface {
	// RecordWebhook ingests a webhook payload, detects the package tier
	// from the amount and stores the payment as pending. Duplicate doc
	// ids are treated as success (webhooks redeliver).
	RecordWebhook(ctx context.Context, docID string, amount float64, customerName, customerEmail string) (*Payment, error)
	// RecordSynced upserts a scraped paid invoice as confirmed.
	// Returns (false, nil) when the doc id was already present.
	RecordSynced(ctx context.Context, docID string, amount float64, customerName, customerEmail string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*Payment, error)
}

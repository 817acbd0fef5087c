package service

import (
	"context"

	"github.com/renthive/booking-engine/internal/model"
)

// PaymentProvider abstracts the payment gateway. The real integration
// lives outside this core; the reconciler only needs the resulting status
// of a charge or refund attempt. Tests inject deterministic fakes.
type PaymentProvider interface {
	// Charge attempts to collect amountCents and returns the resulting
	// transaction status (completed, failed, processing).
	Charge(ctx context.Context, amountCents int64, reference string) (model.PaymentStatus, error)
	// Refund attempts to return amountCents against an earlier charge and
	// returns the resulting status of the refund transaction.
	Refund(ctx context.Context, amountCents int64, reference string) (model.PaymentStatus, error)
}

// AutoApproveProvider resolves every charge and refund as completed. It is
// the stand-in wired in deployments that have not connected a gateway yet.
type AutoApproveProvider struct{}

func (AutoApproveProvider) Charge(ctx context.Context, amountCents int64, reference string) (model.PaymentStatus, error) {
	return model.PaymentCompleted, nil
}

func (AutoApproveProvider) Refund(ctx context.Context, amountCents int64, reference string) (model.PaymentStatus, error) {
	return model.PaymentCompleted, nil
}

package service

import (
	"context"

	"payments/internal/domain"
)

// Publisher delivers lifecycle events to an external channel.
type Publisher interface {
	Publish(ctx context.Context, event domain.PaymentEvent) error
}

// NotificationService turns committed transitions into lifecycle events.
type NotificationService struct {
	publisher Publisher
}

// NewNotificationService creates a new NotificationService.
// A nil publisher makes every notification a no-op.
func NewNotificationService(publisher Publisher) *NotificationService {
	return &NotificationService{publisher: publisher}
}

// NotifyApproved publishes a payment.approved event.
func (s *NotificationService) NotifyApproved(ctx context.Context, payment *domain.Payment) error {
	return s.publish(ctx, domain.NewPaymentEvent(domain.EventPaymentApproved, payment))
}

// NotifyCanceled publishes a payment.canceled event.
func (s *NotificationService) NotifyCanceled(ctx context.Context, payment *domain.Payment) error {
	return s.publish(ctx, domain.NewPaymentEvent(domain.EventPaymentCanceled, payment))
}

func (s *NotificationService) publish(ctx context.Context, event domain.PaymentEvent) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	return s.publisher.Publish(ctx, event)
}

package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"payments/internal/domain"
	"payments/internal/lock"
	"payments/internal/metrics"
	"payments/internal/repository"
	"payments/internal/requestid"
)

const (
	opCreate  = "create"
	opConfirm = "confirm"
	opCancel  = "cancel"
	opGet     = "get"
)

var tracer = otel.Tracer("payments/internal/service")

// Clock returns the current wall-clock time.
type Clock func() time.Time

// KeyLocker serializes work on a single payment key.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// PaymentServiceDeps contains the collaborators of PaymentService.
// Only Repo is required; everything else has a default.
type PaymentServiceDeps struct {
	Repo     repository.PaymentRepository
	Receipts *ReceiptService
	Locker   KeyLocker
	Notifier *NotificationService
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Clock    Clock
}

// PaymentService owns the payment state machine:
//
//	(none)    --create-->  INITIATED
//	(none)    --confirm--> APPROVED
//	INITIATED --confirm--> APPROVED
//	APPROVED  --cancel-->  CANCELED
//
// Confirm on APPROVED and cancel on CANCELED are idempotent replays.
// Every operation on a key runs its read, decision and write while holding
// that key's lock, so concurrent callers observe one transition, never two.
type PaymentService struct {
	repo     repository.PaymentRepository
	receipts *ReceiptService
	locker   KeyLocker
	notifier *NotificationService
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      Clock
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(deps PaymentServiceDeps) *PaymentService {
	s := &PaymentService{
		repo:     deps.Repo,
		receipts: deps.Receipts,
		locker:   deps.Locker,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
	if s.receipts == nil {
		s.receipts = NewReceiptService(DefaultReceiptBaseURL)
	}
	if s.locker == nil {
		s.locker = lock.NewKeyed()
	}
	if s.notifier == nil {
		s.notifier = NewNotificationService(nil)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Create registers a payment in INITIATED state.
// If the key is already known the stored payment is returned unchanged,
// whatever orderID and amount were passed.
func (s *PaymentService) Create(ctx context.Context, paymentKey, orderID string, amount int64) (*domain.Payment, error) {
	return s.run(ctx, opCreate, paymentKey, func(ctx context.Context) (*domain.Payment, error) {
		existing, err := s.find(ctx, paymentKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.metrics.Replay(opCreate)
			return existing, nil
		}

		saved, err := s.save(ctx, domain.NewPayment(paymentKey, orderID, amount, s.now()))
		if err != nil {
			return nil, err
		}
		s.transitioned(ctx, opCreate, "", saved)
		return saved, nil
	})
}

// Confirm approves a payment, creating it first if the key is unknown.
// Idempotency is keyed on (paymentKey, orderID, amount): a repeat with the
// same triple returns the original approval, a repeat with a different
// orderID or amount fails with ErrAmountMismatch.
func (s *PaymentService) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*domain.Payment, error) {
	var approved bool
	payment, err := s.run(ctx, opConfirm, paymentKey, func(ctx context.Context) (*domain.Payment, error) {
		existing, err := s.find(ctx, paymentKey)
		if err != nil {
			return nil, err
		}

		now := s.now()
		payment := existing
		var from domain.PaymentStatus

		if payment == nil {
			payment = domain.NewPayment(paymentKey, orderID, amount, now)
		} else {
			if !payment.Matches(orderID, amount) {
				return nil, ErrAmountMismatch
			}
			switch payment.Status {
			case domain.PaymentStatusCanceled:
				return nil, ErrAlreadyCanceled
			case domain.PaymentStatusApproved:
				s.metrics.Replay(opConfirm)
				return payment, nil
			}
			from = payment.Status
		}

		payment.Approve(domain.PaymentMethodCard, s.receipts.URL(paymentKey), now)

		saved, err := s.save(ctx, payment)
		if err != nil {
			return nil, err
		}
		s.transitioned(ctx, opConfirm, from, saved)
		approved = true
		return saved, nil
	})
	if err != nil {
		return nil, err
	}

	if approved {
		s.notify(ctx, s.notifier.NotifyApproved, payment)
	}
	return payment, nil
}

// Cancel cancels an approved payment in full.
// cancelAmount may be nil; when set it must equal the authorized amount.
func (s *PaymentService) Cancel(ctx context.Context, paymentKey, reason string, cancelAmount *int64) (*domain.Payment, error) {
	var canceled bool
	payment, err := s.run(ctx, opCancel, paymentKey, func(ctx context.Context) (*domain.Payment, error) {
		payment, err := s.find(ctx, paymentKey)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, ErrPaymentNotFound
		}

		switch {
		case payment.Status == domain.PaymentStatusCanceled:
			s.metrics.Replay(opCancel)
			return payment, nil
		case payment.Status != domain.PaymentStatusApproved:
			return nil, ErrNotApproved
		case cancelAmount != nil && *cancelAmount != payment.Amount:
			return nil, ErrPartialMismatch
		}

		from := payment.Status
		payment.Cancel(reason, payment.Amount, s.now())

		saved, err := s.save(ctx, payment)
		if err != nil {
			return nil, err
		}
		s.transitioned(ctx, opCancel, from, saved)
		canceled = true
		return saved, nil
	})
	if err != nil {
		return nil, err
	}

	if canceled {
		s.notify(ctx, s.notifier.NotifyCanceled, payment)
	}
	return payment, nil
}

// Get returns the current snapshot of a payment.
func (s *PaymentService) Get(ctx context.Context, paymentKey string) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.get",
		trace.WithAttributes(attribute.String("payment.key", paymentKey)))
	defer span.End()

	payment, err := s.find(ctx, paymentKey)
	if err == nil && payment == nil {
		err = ErrPaymentNotFound
	}
	if err != nil {
		s.failed(ctx, span, opGet, paymentKey, err)
		return nil, err
	}
	return payment, nil
}

// run traces fn and executes it inside the critical section for paymentKey.
func (s *PaymentService) run(ctx context.Context, op, paymentKey string, fn func(context.Context) (*domain.Payment, error)) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "PaymentService."+op,
		trace.WithAttributes(attribute.String("payment.key", paymentKey)))
	defer span.End()

	unlock, err := s.locker.Lock(ctx, paymentKey)
	if err != nil {
		err = fmt.Errorf("lock payment %s: %w", paymentKey, err)
		s.failed(ctx, span, op, paymentKey, err)
		return nil, err
	}
	defer unlock()

	payment, err := fn(ctx)
	if err != nil {
		s.failed(ctx, span, op, paymentKey, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.status", string(payment.Status)))
	return payment, nil
}

func (s *PaymentService) find(ctx context.Context, paymentKey string) (*domain.Payment, error) {
	payment, err := s.repo.FindByKey(ctx, paymentKey)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", paymentKey, err)
	}
	return payment, nil
}

func (s *PaymentService) save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	saved, err := s.repo.Save(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("save payment %s: %w", payment.PaymentKey, err)
	}
	return saved, nil
}

func (s *PaymentService) transitioned(ctx context.Context, op string, from domain.PaymentStatus, payment *domain.Payment) {
	s.metrics.Transition(op, string(payment.Status))
	s.log(ctx).Info("Payment state transition",
		zap.String("operation", op),
		zap.String("payment_key", payment.PaymentKey),
		zap.String("from_status", string(from)),
		zap.String("to_status", string(payment.Status)),
		zap.Int64("amount", payment.Amount),
	)
}

// notify publishes a lifecycle event after the key's lock is released.
// The transition is already committed, so a delivery failure is logged and
// counted rather than returned.
func (s *PaymentService) notify(ctx context.Context, send func(context.Context, *domain.Payment) error, payment *domain.Payment) {
	if err := send(ctx, payment); err != nil {
		s.metrics.PublishFailure()
		s.log(ctx).Error("Failed to publish payment event",
			zap.String("payment_key", payment.PaymentKey),
			zap.Error(err),
		)
	}
}

func (s *PaymentService) failed(ctx context.Context, span trace.Span, op, paymentKey string, err error) {
	if pe, ok := AsPaymentError(err); ok {
		span.SetAttributes(attribute.String("payment.error_code", pe.Code))
		s.metrics.Failure(op, pe.Code)
		s.log(ctx).Warn("Payment operation rejected",
			zap.String("operation", op),
			zap.String("payment_key", paymentKey),
			zap.String("code", pe.Code),
			zap.String("kind", pe.Kind.String()),
		)
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.Failure(op, "PROVIDER_ERROR")
	s.log(ctx).Error("Payment operation failed",
		zap.String("operation", op),
		zap.String("payment_key", paymentKey),
		zap.Error(err),
	)
}

func (s *PaymentService) log(ctx context.Context) *zap.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		return s.logger.With(zap.String("request_id", id))
	}
	return s.logger
}

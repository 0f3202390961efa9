package discount

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/bistro/internal/domain/auth"
	"github.com/xenking/bistro/internal/domain/event"
	"github.com/xenking/bistro/internal/telemetry"
)

// IsExpired reports whether c is no longer redeemable at now.
// A code expires at the instant of its expiration date.
func IsExpired(c *Code, now time.Time) bool {
	return !c.ExpirationDate.After(now)
}

// Valid reports whether c is active and not expired at now.
func Valid(c *Code, now time.Time) bool {
	return c.IsActive && !IsExpired(c, now)
}

// CreateRequest holds the manager input for a new code.
type CreateRequest struct {
	Code            string
	Percentage      int
	ExpirationDate  time.Time
	MaxUsagePerUser int
}

// Applied is the outcome of a successful code application.
type Applied struct {
	Code       string
	Percentage int
	UsageCount int
}

// Ledger validates, applies and manages discount codes.
type Ledger struct {
	codes   Repository
	events  event.Publisher
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithEvents sets the publisher notified after ledger mutations.
func WithEvents(p event.Publisher) Option {
	return func(l *Ledger) { l.events = p }
}

// WithMetrics sets the counters the ledger records to.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// NewLedger creates a Ledger backed by codes.
func NewLedger(codes Repository, opts ...Option) *Ledger {
	l := &Ledger{
		codes:   codes,
		events:  event.Nop{},
		metrics: telemetry.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// DeactivateIfExpired switches c off when it is expired and still active.
// It returns true when storage was changed.
func (l *Ledger) DeactivateIfExpired(ctx context.Context, c *Code) (bool, error) {
	if !c.IsActive || !IsExpired(c, l.now()) {
		return false, nil
	}
	changed, err := l.codes.Deactivate(ctx, c.ID)
	if err != nil {
		return false, errors.Wrap(err, "deactivate code")
	}
	c.IsActive = false
	if changed {
		zctx.From(ctx).Info("Discount code deactivated on expiry",
			zap.String("code", c.Code),
			zap.Time("expiration_date", c.ExpirationDate),
		)
	}
	return changed, nil
}

// ValidateCode looks up code and checks it can be redeemed. Validating an
// expired code that is still marked active persists its deactivation.
func (l *Ledger) ValidateCode(ctx context.Context, code string) (*Code, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCode
	}
	c, err := l.codes.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, errors.Wrap(err, "lookup code")
	}
	if _, err := l.DeactivateIfExpired(ctx, c); err != nil {
		return nil, err
	}
	if !Valid(c, l.now()) {
		return nil, ErrExpiredOrInactive
	}
	return c, nil
}

// ApplyCode records one use of code by the principal and returns the
// discount percentage. No order is modified.
func (l *Ledger) ApplyCode(ctx context.Context, p *auth.Principal, code string) (*Applied, error) {
	if err := auth.Authorize(p, auth.OpApplyDiscount); err != nil {
		return nil, err
	}
	c, err := l.ValidateCode(ctx, code)
	if err != nil {
		l.metrics.DiscountRejected(ctx, rejectReason(err))
		return nil, err
	}

	limit := c.MaxUsagePerUser
	if limit <= 0 {
		limit = DefaultMaxUsagePerUser
	}
	usage, err := l.codes.RecordUsage(ctx, p.UserID, c.ID, limit)
	if err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			l.metrics.DiscountRejected(ctx, rejectReason(err))
			return nil, ErrUsageLimitReached
		}
		return nil, errors.Wrap(err, "record usage")
	}
	l.metrics.DiscountApplied(ctx)

	zctx.From(ctx).Info("Discount code applied",
		zap.String("code", c.Code),
		zap.String("user_id", p.UserID),
		zap.Int("percentage", c.Percentage),
		zap.Int("usage_count", usage.UsageCount),
	)
	l.publish(ctx, event.Event{
		Kind:   event.DiscountApplied,
		Key:    c.ID,
		UserID: p.UserID,
		At:     l.now(),
		Attrs: map[string]string{
			"code":        c.Code,
			"percentage":  strconv.Itoa(c.Percentage),
			"usage_count": strconv.Itoa(usage.UsageCount),
		},
	})

	return &Applied{
		Code:       c.Code,
		Percentage: c.Percentage,
		UsageCount: usage.UsageCount,
	}, nil
}

// CreateCode defines a new discount code.
func (l *Ledger) CreateCode(ctx context.Context, p *auth.Principal, req CreateRequest) (*Code, error) {
	if err := auth.Authorize(p, auth.OpCreateDiscount); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, ErrInvalidCode
	}
	if req.Percentage < 1 || req.Percentage > 100 {
		return nil, ErrInvalidPercentage
	}
	now := l.now()
	if !req.ExpirationDate.After(now) {
		return nil, ErrExpirationInPast
	}
	maxUsage := req.MaxUsagePerUser
	if maxUsage <= 0 {
		maxUsage = DefaultMaxUsagePerUser
	}

	c := &Code{
		ID:              uuid.New().String(),
		Code:            code,
		Percentage:      req.Percentage,
		ExpirationDate:  req.ExpirationDate.UTC(),
		IsActive:        true,
		MaxUsagePerUser: maxUsage,
		CreatedAt:       now.UTC(),
	}
	if err := l.codes.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, ErrDuplicateCode
		}
		return nil, errors.Wrap(err, "create code")
	}

	zctx.From(ctx).Info("Discount code created",
		zap.String("code", c.Code),
		zap.Int("percentage", c.Percentage),
		zap.Time("expiration_date", c.ExpirationDate),
	)
	l.publish(ctx, event.Event{
		Kind:   event.DiscountCreated,
		Key:    c.ID,
		UserID: p.UserID,
		At:     now,
		Attrs: map[string]string{
			"code":       c.Code,
			"percentage": strconv.Itoa(c.Percentage),
		},
	})
	return c, nil
}

// ListCodes deactivates every expired code that is still active and then
// returns all codes.
func (l *Ledger) ListCodes(ctx context.Context, p *auth.Principal) ([]Code, error) {
	if err := auth.Authorize(p, auth.OpListDiscounts); err != nil {
		return nil, err
	}
	n, err := l.codes.DeactivateExpired(ctx, l.now())
	if err != nil {
		return nil, errors.Wrap(err, "sweep expired codes")
	}
	if n > 0 {
		zctx.From(ctx).Info("Expired discount codes deactivated", zap.Int64("count", n))
	}
	codes, err := l.codes.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list codes")
	}
	return codes, nil
}

func (l *Ledger) publish(ctx context.Context, ev event.Event) {
	if err := l.events.Publish(ctx, ev); err != nil {
		zctx.From(ctx).Warn("Publish event failed",
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ErrExpiredOrInactive):
		return "expired_or_inactive"
	case errors.Is(err, ErrUsageLimitReached):
		return "usage_limit"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	default:
		return "error"
	}
}

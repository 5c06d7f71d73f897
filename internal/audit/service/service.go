// Package service orchestrates the action-plan pipeline: extraction of an
// uploaded workbook, the transactional import into the persistence gateway,
// and the browse and edit operations on stored findings.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"actionplan/internal/audit/extract"
	"actionplan/internal/audit/metrics"
	"actionplan/internal/audit/models"
	"actionplan/internal/events"
	"actionplan/internal/lock"
)

// Gateway is the relational backend holding enterprises and findings.
type Gateway interface {
	ExistsByIdentifier(ctx context.Context, identifier string) (bool, error)
	InsertEnterprise(ctx context.Context, md models.AuditMetadata) (uuid.UUID, error)
	InsertFindings(ctx context.Context, enterpriseID uuid.UUID, records []models.FindingRecord) (int, error)
	UpdateFinding(ctx context.Context, id uuid.UUID, update models.FindingUpdate) (*models.Finding, error)
	ListFindings(ctx context.Context, filter models.FindingFilter) ([]*models.Finding, error)
	ListIdentifiers(ctx context.Context) ([]string, error)
	FindFinding(ctx context.Context, id uuid.UUID) (*models.Finding, error)
	AddAttachment(ctx context.Context, att *models.Attachment) error
	Ping(ctx context.Context) error
}

// Transactor runs fn in one gateway transaction. Gateway calls made with the
// ctx passed to fn join the transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// FileStore persists attachment bytes and returns their public URL.
type FileStore interface {
	Store(ctx context.Context, ownerID, filename string, data []byte) (string, error)
}

// Locker serializes imports of the same COID.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (lock.Release, error)
}

// Publisher emits domain events after successful writes.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultLockTTL        = 2 * time.Minute
)

// Service implements the action-plan operations.
type Service struct {
	gateway   Gateway
	tx        Transactor
	files     FileStore
	locker    Locker
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	layout          extract.Layout
	strictLayout    bool
	partialMetadata bool
	gatewayTimeout  time.Duration
	lockTTL         time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithFileStore(f FileStore) Option {
	return func(s *Service) {
		s.files = f
	}
}

func WithLayout(l extract.Layout) Option {
	return func(s *Service) {
		s.layout = l
	}
}

// WithStrictLayout makes extraction verify label cells before reading values.
func WithStrictLayout(strict bool) Option {
	return func(s *Service) {
		s.strictLayout = strict
	}
}

// WithPartialMetadata lets imports store documents whose reference standard,
// audit type or audit date is empty.
func WithPartialMetadata(allow bool) Option {
	return func(s *Service) {
		s.partialMetadata = allow
	}
}

func WithGatewayTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gatewayTimeout = d
		}
	}
}

func WithLockTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service. Without a locker, imports of the same COID are
// only serialized by the gateway's unique index.
func New(gateway Gateway, tx Transactor, opts ...Option) *Service {
	s := &Service{
		gateway:        gateway,
		tx:             tx,
		layout:         extract.DefaultLayout(),
		gatewayTimeout: defaultGatewayTimeout,
		lockTTL:        defaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.locker == nil {
		s.locker = lock.NewMemory()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("actionplan/audit")
	}
	return s
}

// Ping reports whether the gateway is reachable.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.withGatewayTimeout(ctx)
	defer cancel()
	return s.gateway.Ping(ctx)
}

// withGatewayTimeout bounds ctx unless the caller already set a deadline.
func (s *Service) withGatewayTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.gatewayTimeout)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			"event_type", string(e.Type),
			"subject", e.Subject,
			"error", err,
		)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

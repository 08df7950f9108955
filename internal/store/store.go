// Package store owns the loan application records and the identifier
// sequence. A single Store is built at startup and shared by the HTTP
// transport and the workflow workers.
package store

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"loan-api/internal/common/errors"
	"loan-api/internal/common/logger"
	"loan-api/internal/common/metrics"
	"loan-api/internal/common/observability"
	"loan-api/internal/models"
	"loan-api/internal/underwriting"

	"go.opentelemetry.io/otel/attribute"
)

// Listener is notified after a state change has been stored. Implementations
// handle their own failures; nothing they do affects the caller.
type Listener interface {
	ApplicationSubmitted(ctx context.Context, app models.Application)
	StatusChanged(ctx context.Context, app models.Application, previous models.Status)
}

type Store struct {
	repo      Repository
	logger    logger.Logger
	obs       *observability.Observability
	listeners []Listener
	now       func() time.Time

	// mu makes Submit and UpdateStatus atomic with respect to each other.
	mu sync.Mutex
}

type Option func(*Store)

func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.logger = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithListener(l Listener) Option {
	return func(s *Store) { s.listeners = append(s.listeners, l) }
}

func WithObservability(obs *observability.Observability) Option {
	return func(s *Store) { s.obs = obs }
}

func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		logger: logger.NewNoOpLogger(),
		obs:    &observability.Observability{},
		now:    defaultClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(map[string]interface{}{"component": "store"})
	return s
}

// Timestamps keep millisecond precision so every backend round-trips them unchanged.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Submit decides and stores a new application. The input must already have
// passed underwriting.Validate; Submit does not validate again.
func (s *Store) Submit(ctx context.Context, in models.SubmitInput) (*models.Application, error) {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "store.submit")
	defer span.End()

	app, err := s.insertNew(ctx, in)
	if err != nil {
		s.obs.RecordOperation(ctx, "submit", "error", time.Since(start))
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("applicationId", app.ID), attribute.String("status", string(app.Status)))
	metrics.ApplicationsSubmitted.WithLabelValues(string(app.Status)).Inc()
	s.obs.RecordOperation(ctx, "submit", "success", time.Since(start))
	s.logger.Info("application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"status":        app.Status,
		"reason":        app.Decision.Reason,
	})

	for _, l := range s.listeners {
		l.ApplicationSubmitted(ctx, *app.Clone())
	}
	return app.Clone(), nil
}

func (s *Store) insertNew(ctx context.Context, in models.SubmitInput) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.repo.NextSequence(ctx)
	if err != nil {
		return nil, errors.NewStorageOperationFailedError("next sequence", err)
	}

	decision := underwriting.Decide(in.Income, in.Amount)
	status := models.StatusRejected
	if decision.Approved {
		status = models.StatusApproved
	}

	app := &models.Application{
		ID:        FormatID(seq),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Income:    in.Income,
		Amount:    in.Amount,
		Status:    status,
		Decision:  &decision,
		CreatedAt: s.now(),
	}

	if err := s.repo.Insert(ctx, app); err != nil {
		return nil, errors.NewStorageOperationFailedError("insert", err)
	}
	return app, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if stderrors.Is(err, ErrRecordNotFound) {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewStorageOperationFailedError("find", err)
	}
	return app, nil
}

// List returns every application in creation order.
func (s *Store) List(ctx context.Context) ([]*models.Application, error) {
	apps, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.NewStorageOperationFailedError("list", err)
	}
	return apps, nil
}

// UpdateStatus overwrites the status of id and stamps UpdatedAt. Any of the
// four statuses may follow any other, including itself.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (*models.Application, error) {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "store.update_status", attribute.String("applicationId", id))
	defer span.End()

	app, previous, err := s.overwriteStatus(ctx, id, status)
	if err != nil {
		s.obs.RecordOperation(ctx, "update_status", "error", time.Since(start))
		span.RecordError(err)
		return nil, err
	}

	metrics.StatusUpdates.WithLabelValues(string(app.Status)).Inc()
	s.obs.RecordOperation(ctx, "update_status", "success", time.Since(start))
	s.logger.Info("application status updated", map[string]interface{}{
		"applicationId": app.ID,
		"from":          previous,
		"to":            app.Status,
	})

	for _, l := range s.listeners {
		l.StatusChanged(ctx, *app.Clone(), previous)
	}
	return app.Clone(), nil
}

func (s *Store) overwriteStatus(ctx context.Context, id, status string) (*models.Application, models.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	next, ok := models.ParseStatus(status)
	if !ok {
		return nil, "", errors.NewInvalidStatusError(status, models.StatusStrings())
	}

	previous := app.Status
	now := s.now()
	app.Status = next
	app.UpdatedAt = &now

	if err := s.repo.Save(ctx, app); err != nil {
		if stderrors.Is(err, ErrRecordNotFound) {
			return nil, "", errors.NewApplicationNotFoundError(id)
		}
		return nil, "", errors.NewStorageOperationFailedError("save", err)
	}
	return app, previous, nil
}

// Seed inserts pre-built records without validation or decisioning and moves
// the sequence past the highest seeded id. Ids already present are skipped,
// so seeding a persistent backend twice is harmless.
func (s *Store) Seed(ctx context.Context, apps []models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var highest int64
	inserted := 0
	for i := range apps {
		app := apps[i].Clone()
		if n, ok := ParseID(app.ID); ok && n > highest {
			highest = n
		}

		err := s.repo.Insert(ctx, app)
		if stderrors.Is(err, ErrDuplicateID) {
			continue
		}
		if err != nil {
			return errors.NewStorageOperationFailedError("seed", err)
		}
		inserted++
	}

	if err := s.repo.AdvanceSequence(ctx, highest); err != nil {
		return errors.NewStorageOperationFailedError("advance sequence", err)
	}

	s.logger.Info("seed data loaded", map[string]interface{}{
		"records":  len(apps),
		"inserted": inserted,
		"highest":  highest,
	})
	return nil
}

// Ping reports whether the backing repository is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

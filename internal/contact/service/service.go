package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contactlink/internal/contact/cluster"
	"contactlink/internal/contact/metrics"
	"contactlink/internal/contact/models"
	"contactlink/internal/contact/ports"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/platform/sentinel"
	"contactlink/pkg/requestcontext"
)

const tracerName = "contactlink/internal/contact/service"

// Service resolves observations into identities. Every call runs as one unit
// of work on the injected transactional store.
type Service struct {
	tx             ports.ContactStoreTx
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	clock          func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithClock sets the clock that stamps merge reassignments. Record creation
// times come from the store.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = now
	}
}

// New constructs a Service.
func New(tx ports.ContactStoreTx, opts ...Option) *Service {
	s := &Service{
		tx:     tx,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// identifyResult is what one committed identify unit did.
type identifyResult struct {
	view        *models.IdentityView
	created     *models.Contact
	plan        models.MergePlan
	clusterSize int
}

func (r identifyResult) outcome() string {
	switch {
	case len(r.plan.Demoted) > 0:
		return "merged"
	case r.created != nil && r.created.IsPrimary():
		return "created_primary"
	case r.created != nil:
		return "created_secondary"
	default:
		return "unchanged"
	}
}

// Identify resolves an (email, phone) observation into the identity it belongs
// to, creating and merging records as needed.
//
// The unit resolves the cluster, folds its primaries under the oldest one,
// adds a record when the observation brings something new, then re-resolves
// from the canonical primary and projects the result. Both inputs are trimmed;
// an observation with neither is rejected before the store is touched.
func (s *Service) Identify(ctx context.Context, email, phoneNumber string) (*models.IdentityView, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "contact.Identify")
	defer span.End()

	obs, err := models.NewObservation(email, phoneNumber)
	if err != nil {
		s.metrics.IncrementOutcome("invalid")
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("contact.has_email", obs.HasEmail()),
		attribute.Bool("contact.has_phone", obs.HasPhoneNumber()),
	)

	var res identifyResult
	err = s.tx.RunInTx(ctx, func(store ports.ContactStore) error {
		// The boundary may replay this closure; start each attempt clean.
		res = identifyResult{}
		return s.identifyInTx(ctx, store, obs, s.clock().UTC(), &res)
	})
	if err != nil {
		err = translateStoreError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.metrics.IncrementOutcome("error")
		s.logger.ErrorContext(ctx, "identify failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, err
	}

	outcome := res.outcome()
	span.SetAttributes(
		attribute.Int64("contact.primary_id", int64(res.view.PrimaryID)),
		attribute.String("contact.outcome", outcome),
		attribute.Int("contact.cluster_size", res.clusterSize),
	)
	s.metrics.IncrementOutcome(outcome)
	s.metrics.ObserveIdentifyLatency(time.Since(start))
	s.metrics.ObserveClusterSize(res.clusterSize)
	s.metrics.AddDemoted(len(res.plan.Demoted))
	if res.created != nil {
		s.metrics.IncrementCreated(string(res.created.LinkPrecedence))
	}
	s.emitIdentifyEvents(ctx, res)

	s.logger.InfoContext(ctx, "identity resolved",
		"request_id", requestcontext.RequestID(ctx),
		"primary_id", res.view.PrimaryID,
		"outcome", outcome,
		"cluster_size", res.clusterSize,
	)
	return res.view, nil
}

func (s *Service) identifyInTx(ctx context.Context, store ports.ContactStore, obs models.Observation, now time.Time, res *identifyResult) error {
	resolver := cluster.NewResolver(store)
	integrator := cluster.NewIntegrator(store)

	seeds, err := store.FindByEmailOrPhone(ctx, obs.Email, obs.PhoneNumber)
	if err != nil {
		return err
	}
	found, err := resolver.Resolve(ctx, seeds)
	if err != nil {
		return err
	}

	var canonicalID models.ContactID
	if len(found) == 0 {
		created, err := integrator.Integrate(ctx, nil, nil, obs)
		if err != nil {
			return err
		}
		res.created = created
		canonicalID = created.ID
	} else {
		plan, err := cluster.Plan(found, now)
		if err != nil {
			return err
		}
		if !plan.IsNoop() {
			if err := store.ApplyReassignments(ctx, plan.Reassignments); err != nil {
				return err
			}
		}
		created, err := integrator.Integrate(ctx, plan.Apply(found), plan.Canonical, obs)
		if err != nil {
			return err
		}
		res.plan = plan
		res.created = created
		canonicalID = plan.Canonical.ID
	}

	final, err := resolver.ResolveFrom(ctx, canonicalID)
	if err != nil {
		return err
	}
	view, err := cluster.Project(final)
	if err != nil {
		return err
	}
	res.view = view
	res.clusterSize = len(final)
	return nil
}

// Lookup returns the identity of the cluster containing id without writing.
func (s *Service) Lookup(ctx context.Context, id models.ContactID) (*models.IdentityView, error) {
	ctx, span := s.tracer.Start(ctx, "contact.Lookup", trace.WithAttributes(attribute.Int64("contact.id", int64(id))))
	defer span.End()

	var view *models.IdentityView
	err := s.tx.RunInTx(ctx, func(store ports.ContactStore) error {
		final, err := cluster.NewResolver(store).ResolveFrom(ctx, id)
		if err != nil {
			return err
		}
		view, err = cluster.Project(final)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		err = translateStoreError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	return view, nil
}

// ListContacts returns every non-removed record in ascending id order.
func (s *Service) ListContacts(ctx context.Context) ([]*models.Contact, error) {
	var out []*models.Contact
	err := s.tx.RunInTx(ctx, func(store ports.ContactStore) error {
		var err error
		out, err = store.List(ctx)
		return err
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	return out, nil
}

// ImportContacts loads fixture records with their own ids in one unit.
func (s *Service) ImportContacts(ctx context.Context, contacts []*models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	err := s.tx.RunInTx(ctx, func(store ports.ContactStore) error {
		return store.Import(ctx, contacts)
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.Wrap(err, dErrors.CodeConflict, "contact ids already exist")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.Wrap(err, dErrors.CodeValidation, "malformed contact fixture")
		}
		return translateStoreError(err)
	}
	s.logAudit(ctx, eventContactsImported(ctx, len(contacts)))
	s.logger.InfoContext(ctx, "contacts imported",
		"request_id", requestcontext.RequestID(ctx),
		"count", len(contacts),
	)
	return nil
}

// translateStoreError keeps domain errors and classifies everything else as a
// store failure.
func translateStoreError(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "identify timed out")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "contact store rejected a link")
	default:
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "contact store unavailable")
	}
}

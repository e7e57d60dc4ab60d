package service

import (
	"context"
	"strconv"

	"contactlink/internal/contact/models"
	"contactlink/pkg/platform/audit"
	"contactlink/pkg/requestcontext"
)

// emitIdentifyEvents publishes what a committed identify unit changed. Events
// go out only after commit, so a rolled-back unit never produces any.
func (s *Service) emitIdentifyEvents(ctx context.Context, res identifyResult) {
	primaryID := res.view.PrimaryID.String()

	if res.created != nil {
		s.logAudit(ctx, s.newEvent(ctx, audit.EventContactCreated, res.created.ID, primaryID,
			string(res.created.LinkPrecedence)))
	}

	demoted := make(map[models.ContactID]struct{}, len(res.plan.Demoted))
	for _, id := range res.plan.Demoted {
		demoted[id] = struct{}{}
		s.logAudit(ctx, s.newEvent(ctx, audit.EventContactDemoted, id, primaryID, "merged into older primary"))
	}
	for _, r := range res.plan.Reassignments {
		if _, ok := demoted[r.ContactID]; ok {
			continue
		}
		s.logAudit(ctx, s.newEvent(ctx, audit.EventContactRelinked, r.ContactID, primaryID, "parent demoted"))
	}

	s.logAudit(ctx, s.newEvent(ctx, audit.EventIdentityResolved, res.view.PrimaryID, primaryID, res.outcome()))
}

func (s *Service) newEvent(ctx context.Context, action audit.AuditEvent, subject models.ContactID, primaryID, reason string) audit.Event {
	return audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Subject:   subject.String(),
		Action:    string(action),
		PrimaryID: primaryID,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}
}

func eventContactsImported(ctx context.Context, count int) audit.Event {
	return audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Subject:   "import",
		Action:    string(audit.EventContactsImported),
		Reason:    strconv.Itoa(count) + " contacts",
		RequestID: requestcontext.RequestID(ctx),
	}
}

// logAudit emits an event; audit failures never fail the operation.
func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", event.RequestID,
			"action", event.Action,
			"error", err,
		)
	}
}

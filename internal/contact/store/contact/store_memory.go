package contact

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"contactlink/internal/contact/models"
	"contactlink/internal/contact/ports"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// InMemory is a contact store guarded by a single lock. Each RunInTx holds the
// lock for the whole unit of work, which makes units serializable, and keeps an
// undo journal so a failed unit leaves no partial writes behind.
//
// Create stamps CreatedAt from the store clock while the lock is held, never
// earlier than any record already stored, so CreatedAt order follows commit
// order even when the clock steps back.
type InMemory struct {
	mu        sync.Mutex
	contacts  map[models.ContactID]*models.Contact
	nextID    models.ContactID
	lastStamp time.Time
	now       func() time.Time
	timeout   time.Duration
}

type MemoryOption func(*InMemory)

// WithClock overrides the clock used to stamp new records.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemory) {
		s.now = now
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{
		contacts: make(map[models.ContactID]*models.Contact),
		nextID:   1,
		now:      time.Now,
		timeout:  defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stamp returns the creation time for the next record. The caller holds s.mu.
func (s *InMemory) stamp() time.Time {
	at := s.now().UTC()
	if at.Before(s.lastStamp) {
		at = s.lastStamp
	}
	s.lastStamp = at
	return at
}

// RunInTx implements ports.ContactStoreTx.
func (s *InMemory) RunInTx(ctx context.Context, fn func(store ports.ContactStore) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx := &memoryTx{s: s, undo: make(map[models.ContactID]*models.Contact), nextID: s.nextID, lastStamp: s.lastStamp}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *InMemory) FindByEmailOrPhone(ctx context.Context, email, phoneNumber string) (out []*models.Contact, err error) {
	err = s.RunInTx(ctx, func(store ports.ContactStore) error {
		out, err = store.FindByEmailOrPhone(ctx, email, phoneNumber)
		return err
	})
	return out, err
}

func (s *InMemory) FindByID(ctx context.Context, id models.ContactID) (out *models.Contact, err error) {
	err = s.RunInTx(ctx, func(store ports.ContactStore) error {
		out, err = store.FindByID(ctx, id)
		return err
	})
	return out, err
}

func (s *InMemory) FindByLinkedID(ctx context.Context, id models.ContactID) (out []*models.Contact, err error) {
	err = s.RunInTx(ctx, func(store ports.ContactStore) error {
		out, err = store.FindByLinkedID(ctx, id)
		return err
	})
	return out, err
}

func (s *InMemory) Create(ctx context.Context, fields models.NewContact) (out *models.Contact, err error) {
	err = s.RunInTx(ctx, func(store ports.ContactStore) error {
		out, err = store.Create(ctx, fields)
		return err
	})
	return out, err
}

func (s *InMemory) ApplyReassignments(ctx context.Context, reassignments []models.Reassignment) error {
	return s.RunInTx(ctx, func(store ports.ContactStore) error {
		return store.ApplyReassignments(ctx, reassignments)
	})
}

func (s *InMemory) List(ctx context.Context) (out []*models.Contact, err error) {
	err = s.RunInTx(ctx, func(store ports.ContactStore) error {
		out, err = store.List(ctx)
		return err
	})
	return out, err
}

func (s *InMemory) Import(ctx context.Context, contacts []*models.Contact) error {
	return s.RunInTx(ctx, func(store ports.ContactStore) error {
		return store.Import(ctx, contacts)
	})
}

// memoryTx is the store view handed to one unit of work. The caller holds s.mu.
type memoryTx struct {
	s *InMemory
	// undo maps each touched id to its state before the unit; nil means the
	// record did not exist.
	undo      map[models.ContactID]*models.Contact
	nextID    models.ContactID
	lastStamp time.Time
}

func (t *memoryTx) remember(id models.ContactID) {
	if _, ok := t.undo[id]; ok {
		return
	}
	if c, ok := t.s.contacts[id]; ok {
		t.undo[id] = c.Clone()
		return
	}
	t.undo[id] = nil
}

func (t *memoryTx) rollback() {
	for id, prev := range t.undo {
		if prev == nil {
			delete(t.s.contacts, id)
			continue
		}
		t.s.contacts[id] = prev
	}
	t.s.nextID = t.nextID
	t.s.lastStamp = t.lastStamp
}

func (t *memoryTx) collect(match func(*models.Contact) bool) []*models.Contact {
	var out []*models.Contact
	for _, c := range t.s.contacts {
		if !c.IsRemoved() && match(c) {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Contact) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (t *memoryTx) FindByEmailOrPhone(_ context.Context, email, phoneNumber string) ([]*models.Contact, error) {
	if email == "" && phoneNumber == "" {
		return nil, nil
	}
	return t.collect(func(c *models.Contact) bool {
		return (email != "" && c.Email == email) || (phoneNumber != "" && c.PhoneNumber == phoneNumber)
	}), nil
}

func (t *memoryTx) FindByID(_ context.Context, id models.ContactID) (*models.Contact, error) {
	c, ok := t.s.contacts[id]
	if !ok || c.IsRemoved() {
		return nil, fmt.Errorf("contact %d: %w", id, sentinel.ErrNotFound)
	}
	return c.Clone(), nil
}

func (t *memoryTx) FindByLinkedID(_ context.Context, id models.ContactID) ([]*models.Contact, error) {
	return t.collect(func(c *models.Contact) bool { return c.LinksTo(id) }), nil
}

func (t *memoryTx) Create(_ context.Context, fields models.NewContact) (*models.Contact, error) {
	if fields.LinkedID != nil {
		parent, ok := t.s.contacts[*fields.LinkedID]
		if !ok || parent.IsRemoved() || !parent.IsPrimary() {
			return nil, fmt.Errorf("link to contact %d: %w", *fields.LinkedID, sentinel.ErrInvalidState)
		}
	}
	id := t.s.nextID
	t.remember(id)
	t.s.nextID++
	c := fields.Build(id, t.s.stamp())
	t.s.contacts[id] = c
	return c.Clone(), nil
}

func (t *memoryTx) ApplyReassignments(_ context.Context, reassignments []models.Reassignment) error {
	for _, r := range reassignments {
		c, ok := t.s.contacts[r.ContactID]
		if !ok || c.IsRemoved() {
			return fmt.Errorf("reassign contact %d: %w", r.ContactID, sentinel.ErrNotFound)
		}
	}
	for _, r := range reassignments {
		t.remember(r.ContactID)
		r.ApplyTo(t.s.contacts[r.ContactID])
	}
	return nil
}

func (t *memoryTx) List(_ context.Context) ([]*models.Contact, error) {
	return t.collect(func(*models.Contact) bool { return true }), nil
}

func (t *memoryTx) Import(_ context.Context, contacts []*models.Contact) error {
	batch := make(map[models.ContactID]struct{}, len(contacts))
	for _, c := range contacts {
		_, exists := t.s.contacts[c.ID]
		_, repeated := batch[c.ID]
		if exists || repeated {
			return fmt.Errorf("import contact %d: %w", c.ID, sentinel.ErrConflict)
		}
		batch[c.ID] = struct{}{}
		if err := c.CheckShape(); err != nil {
			return fmt.Errorf("import contact %d: %w: %s", c.ID, sentinel.ErrInvalidState, err.Error())
		}
	}
	for _, c := range contacts {
		t.remember(c.ID)
		t.s.contacts[c.ID] = c.Clone()
		if c.ID >= t.s.nextID {
			t.s.nextID = c.ID + 1
		}
		if c.CreatedAt.After(t.s.lastStamp) {
			t.s.lastStamp = c.CreatedAt
		}
	}
	return nil
}

// Package memstore is an in-memory implementation of the repository interfaces with the
// same conditional-write semantics as the Postgres repositories.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

type reportKey struct {
	exchangeID uuid.UUID
	userID     int64
}

type data struct {
	users         map[int64]models.User
	products      map[uuid.UUID]models.Product
	conversations map[uuid.UUID]models.Conversation
	messages      []models.ChatMessage
	proposals     map[uuid.UUID]models.Proposal
	exchanges     map[uuid.UUID]models.Exchange
	reports       map[reportKey]models.ValidationReport
	badges        map[int64]map[string]models.BadgeGrant
}

func (d data) clone() data {
	c := data{
		users:         cloneMap(d.users),
		products:      cloneMap(d.products),
		conversations: cloneMap(d.conversations),
		messages:      slices.Clone(d.messages),
		proposals:     cloneMap(d.proposals),
		exchanges:     cloneMap(d.exchanges),
		reports:       cloneMap(d.reports),
		badges:        make(map[int64]map[string]models.BadgeGrant, len(d.badges)),
	}
	for k, v := range d.badges {
		c.badges[k] = cloneMap(v)
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Store holds every table. Transactions are serialized and rolled back from a snapshot.
type Store struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	d      data
	nextID int64
	clock  time.Time
}

func New() *Store {
	return &Store{
		d: data{
			users:         map[int64]models.User{},
			products:      map[uuid.UUID]models.Product{},
			conversations: map[uuid.UUID]models.Conversation{},
			proposals:     map[uuid.UUID]models.Proposal{},
			exchanges:     map[uuid.UUID]models.Exchange{},
			reports:       map[reportKey]models.ValidationReport{},
			badges:        map[int64]map[string]models.BadgeGrant{},
		},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now returns a strictly increasing time so orderings are deterministic. Callers hold mu.
func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Seeding and inspection helpers.

func (s *Store) AddUser(externalID, displayName string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	ts := s.now()
	u := models.User{ID: s.nextID, ExternalID: externalID, DisplayName: displayName, CreatedAt: ts, UpdatedAt: ts}
	s.d.users[u.ID] = u
	return u
}

func (s *Store) AddProduct(ownerID int64, title string) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	p := models.Product{ID: uuid.New(), OwnerID: ownerID, Title: title, Status: models.ProductStatusAvailable, CreatedAt: ts, UpdatedAt: ts}
	s.d.products[p.ID] = p
	return p
}

// AddConversation opens a conversation from initiator about owner's product.
func (s *Store) AddConversation(initiatorID, ownerID int64, productID uuid.UUID, offeredProductID *uuid.UUID) models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	c := models.Conversation{
		ID:               uuid.New(),
		InitiatorID:      initiatorID,
		OwnerID:          ownerID,
		ProductID:        productID,
		OfferedProductID: offeredProductID,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	s.d.conversations[c.ID] = c
	return c
}

// PutExchange stores e as-is and links it to its conversation.
func (s *Store) PutExchange(e models.Exchange) models.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	ts := s.now()
	e.CreatedAt, e.UpdatedAt = ts, ts
	s.d.exchanges[e.ID] = e
	if c, ok := s.d.conversations[e.ConversationID]; ok {
		id := e.ID
		c.ExchangeID = &id
		s.d.conversations[c.ID] = c
	}
	return e
}

func (s *Store) Exchange(id uuid.UUID) (models.Exchange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.d.exchanges[id]
	return e, ok
}

func (s *Store) Conversation(id uuid.UUID) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.conversations[id]
	return c, ok
}

func (s *Store) Proposal(id uuid.UUID) (models.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.proposals[id]
	return p, ok
}

func (s *Store) Product(id uuid.UUID) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.products[id]
	return p, ok
}

func (s *Store) User(id int64) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.d.users[id]
	return u, ok
}

func (s *Store) Transcript(conversationID uuid.UUID) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ChatMessage
	for _, m := range s.d.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) Badges(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for k := range s.d.badges[userID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Repository views.

func (s *Store) Users() *Users                 { return &Users{s} }
func (s *Store) Conversations() *Conversations { return &Conversations{s} }
func (s *Store) ChatMessages() *ChatMessages   { return &ChatMessages{s} }
func (s *Store) Proposals() *Proposals         { return &Proposals{s} }
func (s *Store) Exchanges() *Exchanges         { return &Exchanges{s} }
func (s *Store) Reports() *Reports             { return &Reports{s} }
func (s *Store) Products() *Products           { return &Products{s} }

var (
	_ repositories.TxRunner         = (*Store)(nil)
	_ repositories.UserRepo         = (*Users)(nil)
	_ repositories.ReputationRepo   = (*Users)(nil)
	_ repositories.ConversationRepo = (*Conversations)(nil)
	_ repositories.MessageRepo      = (*ChatMessages)(nil)
	_ repositories.ProposalRepo     = (*Proposals)(nil)
	_ repositories.ExchangeRepo     = (*Exchanges)(nil)
	_ repositories.ValidationRepo   = (*Reports)(nil)
	_ repositories.ProductRepo      = (*Products)(nil)
)

type Users struct{ s *Store }

func (r *Users) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, fernerrors.NotFound("user %d does not exist", id)
	}
	return &u, nil
}

func (r *Users) ResolveUserID(_ context.Context, subject string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.d.users {
		if u.ExternalID == subject {
			return u.ID, nil
		}
	}
	return 0, fernerrors.NotFound("user %s does not exist", subject)
}

func (r *Users) SetCompletedExchanges(_ context.Context, userID int64, count int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[userID]
	if !ok {
		return fernerrors.NotFound("user %d does not exist", userID)
	}
	u.CompletedExchanges = max(u.CompletedExchanges, count)
	u.UpdatedAt = r.s.now()
	r.s.d.users[userID] = u
	return nil
}

func (r *Users) GrantBadge(_ context.Context, userID int64, badgeKey string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	held := r.s.d.badges[userID]
	if held == nil {
		held = map[string]models.BadgeGrant{}
		r.s.d.badges[userID] = held
	}
	if _, ok := held[badgeKey]; ok {
		return false, nil
	}
	held[badgeKey] = models.BadgeGrant{UserID: userID, BadgeKey: badgeKey, GrantedAt: r.s.now()}
	return true, nil
}

func (r *Users) ListBadges(_ context.Context, userID int64) ([]models.BadgeGrant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var grants []models.BadgeGrant
	for _, g := range r.s.d.badges[userID] {
		grants = append(grants, g)
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].GrantedAt.Before(grants[j].GrantedAt) })
	return grants, nil
}

type Conversations struct{ s *Store }

func (r *Conversations) GetByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.conversations[id]
	if !ok {
		return nil, fernerrors.NotFound("conversation %s does not exist", id)
	}
	return &c, nil
}

func (r *Conversations) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return r.GetByID(ctx, id)
}

func (r *Conversations) LinkExchange(_ context.Context, conversationID, exchangeID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.conversations[conversationID]
	if !ok || c.ExchangeID != nil {
		return repositories.ErrConditionNotMet
	}
	c.ExchangeID = &exchangeID
	c.UpdatedAt = r.s.now()
	r.s.d.conversations[conversationID] = c
	return nil
}

type ChatMessages struct{ s *Store }

func (r *ChatMessages) Create(_ context.Context, msg *models.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.conversations[msg.ConversationID]; !ok {
		return fernerrors.NotFound("conversation %s does not exist", msg.ConversationID)
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = r.s.now()
	r.s.d.messages = append(r.s.d.messages, *msg)
	return nil
}

type Proposals struct{ s *Store }

func (r *Proposals) Create(_ context.Context, p *models.Proposal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	ts := r.s.now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	r.s.d.proposals[p.ID] = *p
	return nil
}

func (r *Proposals) GetByID(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.proposals[id]
	if !ok {
		return nil, fernerrors.NotFound("proposal %s does not exist", id)
	}
	return &p, nil
}

func (r *Proposals) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]models.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Proposal
	for _, p := range r.s.d.proposals {
		if p.ConversationID == conversationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Proposals) Resolve(_ context.Context, id uuid.UUID, status models.ProposalStatus, responseText *string) (*models.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.proposals[id]
	if !ok || p.Status != models.ProposalStatusPending {
		return nil, repositories.ErrConditionNotMet
	}
	ts := r.s.now()
	p.Status = status
	p.ResponseText = responseText
	p.RespondedAt = &ts
	p.UpdatedAt = ts
	r.s.d.proposals[id] = p
	return &p, nil
}

type Exchanges struct{ s *Store }

func (r *Exchanges) Create(_ context.Context, e *models.Exchange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.d.exchanges {
		if existing.ConversationID == e.ConversationID {
			return fernerrors.InvalidState("conversation already has an exchange")
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	ts := r.s.now()
	e.CreatedAt, e.UpdatedAt = ts, ts
	r.s.d.exchanges[e.ID] = *e
	return nil
}

func (r *Exchanges) GetByID(_ context.Context, id uuid.UUID) (*models.Exchange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.d.exchanges[id]
	if !ok {
		return nil, fernerrors.NotFound("exchange %s does not exist", id)
	}
	return &e, nil
}

// GetForUpdate relies on WithinTx serializing transactions.
func (r *Exchanges) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	return r.GetByID(ctx, id)
}

func (r *Exchanges) List(_ context.Context, filter models.ExchangeFilter) ([]models.Exchange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Exchange
	for _, e := range r.s.d.exchanges {
		if !e.IsParticipant(filter.UserID) {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Exchanges) Transition(_ context.Context, id uuid.UUID, from []models.ExchangeStatus, to models.ExchangeStatus, changes models.ExchangeChanges) (*models.Exchange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.d.exchanges[id]
	if !ok || !slices.Contains(from, e.Status) {
		return nil, repositories.ErrConditionNotMet
	}
	changes.ApplyTo(&e)
	e.Status = to
	e.UpdatedAt = r.s.now()
	r.s.d.exchanges[id] = e
	return &e, nil
}

func (r *Exchanges) CountCompletedForUser(_ context.Context, userID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, e := range r.s.d.exchanges {
		if e.Status == models.ExchangeStatusCompleted && e.IsParticipant(userID) {
			n++
		}
	}
	return n, nil
}

type Reports struct{ s *Store }

func (r *Reports) Upsert(_ context.Context, report *models.ValidationReport, eligible []models.ExchangeStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.d.exchanges[report.ExchangeID]
	if !ok || !slices.Contains(eligible, e.Status) {
		return repositories.ErrConditionNotMet
	}

	key := reportKey{report.ExchangeID, report.UserID}
	ts := r.s.now()
	report.SubmittedAt, report.UpdatedAt = ts, ts
	if existing, ok := r.s.d.reports[key]; ok {
		report.SubmittedAt = existing.SubmittedAt
	}
	r.s.d.reports[key] = *report
	return nil
}

func (r *Reports) ListByExchange(_ context.Context, exchangeID uuid.UUID) ([]models.ValidationReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.ValidationReport
	for k, v := range r.s.d.reports {
		if k.exchangeID == exchangeID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

type Products struct{ s *Store }

func (r *Products) SetStatus(_ context.Context, id uuid.UUID, status models.ProductStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.products[id]
	if !ok {
		return fernerrors.NotFound("product %s does not exist", id)
	}
	p.Status = status
	p.UpdatedAt = r.s.now()
	r.s.d.products[id] = p
	return nil
}

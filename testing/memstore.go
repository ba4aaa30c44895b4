package testing

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memTxKey struct{}

type memState struct {
	nextID    uint
	campaigns map[uint]models.Campaign
	versions  map[uint]models.CampaignVersion
	audiences map[uint]models.AudienceConfig
	actions   map[uint]models.ActionConfig
	benefits  map[uint]models.BenefitConfig
	templates map[uint]models.CommTemplate
	approvals map[uint]models.LegalApproval
	customers map[uint]models.Customer
	scores    map[uint]models.ArbitrationScore
	audits    map[uint]models.AuditEntry
	offers    map[uint]models.OfferAssignment
}

func newMemState() *memState {
	return &memState{
		campaigns: map[uint]models.Campaign{},
		versions:  map[uint]models.CampaignVersion{},
		audiences: map[uint]models.AudienceConfig{},
		actions:   map[uint]models.ActionConfig{},
		benefits:  map[uint]models.BenefitConfig{},
		templates: map[uint]models.CommTemplate{},
		approvals: map[uint]models.LegalApproval{},
		customers: map[uint]models.Customer{},
		scores:    map[uint]models.ArbitrationScore{},
		audits:    map[uint]models.AuditEntry{},
		offers:    map[uint]models.OfferAssignment{},
	}
}

// clone copies every table. Rows are replaced, never mutated in place, so a
// shallow copy of each map is a consistent snapshot.
func (st *memState) clone() *memState {
	return &memState{
		nextID:    st.nextID,
		campaigns: maps.Clone(st.campaigns),
		versions:  maps.Clone(st.versions),
		audiences: maps.Clone(st.audiences),
		actions:   maps.Clone(st.actions),
		benefits:  maps.Clone(st.benefits),
		templates: maps.Clone(st.templates),
		approvals: maps.Clone(st.approvals),
		customers: maps.Clone(st.customers),
		scores:    maps.Clone(st.scores),
		audits:    maps.Clone(st.audits),
		offers:    maps.Clone(st.offers),
	}
}

func (st *memState) id() uint {
	st.nextID++
	return st.nextID
}

// MemStore is an in-memory implementation of every repository interface.
// Transactions snapshot all tables and restore them when the unit of work fails.
type MemStore struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	state    *memState
	failures map[string]error
}

// NewMemStore creates an empty store
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState(), failures: map[string]error{}}
}

// FailOn makes the named operation (e.g. "templates.CopyForward") return err
// until cleared with a nil err.
func (s *MemStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemStore) fail(op string) error {
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WithTransaction implements repository.Transactor
func (s *MemStore) WithTransaction(ctx context.Context, fn func(context.Context) error) (err error) {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	rollback := func() {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		rollback()
		return err
	}
	return nil
}

// Set returns every repository backed by this store
func (s *MemStore) Set() repository.Set {
	return repository.Set{
		Tx:        s,
		Campaigns: s.Campaigns(),
		Versions:  s.Versions(),
		Audiences: s.Audiences(),
		Actions:   s.Actions(),
		Benefits:  s.Benefits(),
		Templates: s.Templates(),
		Approvals: s.Approvals(),
		Customers: s.Customers(),
		Scores:    s.Scores(),
		Audits:    s.Audits(),
		Offers:    s.Offers(),
	}
}

func (s *MemStore) Campaigns() repository.CampaignRepository { return memCampaigns{s} }

func (s *MemStore) Versions() repository.CampaignVersionRepository { return memVersions{s} }

func (s *MemStore) Audiences() repository.AudienceConfigRepository {
	return &memConfigs[models.AudienceConfig]{
		s:     s,
		name:  "audiences",
		table: func(st *memState) map[uint]models.AudienceConfig { return st.audiences },
		ident: func(c *models.AudienceConfig) (uint, uint, int) { return c.ID, c.CampaignID, c.Version },
		assign: func(c *models.AudienceConfig, id uint, version int) {
			c.ID, c.Version = id, version
		},
	}
}

func (s *MemStore) Actions() repository.ActionConfigRepository {
	return &memConfigs[models.ActionConfig]{
		s:     s,
		name:  "actions",
		table: func(st *memState) map[uint]models.ActionConfig { return st.actions },
		ident: func(c *models.ActionConfig) (uint, uint, int) { return c.ID, c.CampaignID, c.Version },
		assign: func(c *models.ActionConfig, id uint, version int) {
			c.ID, c.Version = id, version
			c.SaleChannels = slices.Clone(c.SaleChannels)
		},
	}
}

func (s *MemStore) Benefits() repository.BenefitConfigRepository {
	return &memConfigs[models.BenefitConfig]{
		s:     s,
		name:  "benefits",
		table: func(st *memState) map[uint]models.BenefitConfig { return st.benefits },
		ident: func(c *models.BenefitConfig) (uint, uint, int) { return c.ID, c.CampaignID, c.Version },
		assign: func(c *models.BenefitConfig, id uint, version int) {
			c.ID, c.Version = id, version
			c.Exclusions = slices.Clone(c.Exclusions)
		},
	}
}

func (s *MemStore) Templates() repository.CommTemplateRepository { return memTemplates{s} }

func (s *MemStore) Approvals() repository.LegalApprovalRepository { return memApprovals{s} }

func (s *MemStore) Customers() repository.CustomerRepository { return memCustomers{s} }

func (s *MemStore) Scores() repository.ArbitrationScoreRepository { return memScores{s} }

func (s *MemStore) Audits() repository.AuditEntryRepository { return memAudits{s} }

func (s *MemStore) Offers() repository.OfferAssignmentRepository { return memOffers{s} }

func duplicate(what string) error {
	return fmt.Errorf("failed to save %s: %w", what, repository.ErrDuplicateKey)
}

func sortedByID[T any](rows map[uint]T, keep func(*T) bool) []*T {
	ids := slices.Sorted(maps.Keys(rows))
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		row := rows[id]
		if keep == nil || keep(&row) {
			out = append(out, &row)
		}
	}
	return out
}

func page[T any](rows []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// campaigns

type memCampaigns struct{ s *MemStore }

func (r memCampaigns) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.campaigns[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r memCampaigns) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	list, err := r.ByFilter(ctx, models.CampaignFilter{UUID: &id}, "", 1, 0)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (r memCampaigns) ByName(ctx context.Context, name string) (*models.Campaign, error) {
	list, err := r.ByFilter(ctx, models.CampaignFilter{Name: &name}, "", 1, 0)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// ByFilter ignores orderBy and returns rows in id order
func (r memCampaigns) ByFilter(ctx context.Context, f models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := sortedByID(r.s.state.campaigns, func(c *models.Campaign) bool {
		switch {
		case f.ID != nil && c.ID != *f.ID:
			return false
		case f.UUID != nil && c.UUID != *f.UUID:
			return false
		case f.Name != nil && c.Name != *f.Name:
			return false
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, c.Status):
			return false
		case f.EndBefore != nil && !c.EndDate.Before(*f.EndBefore):
			return false
		}
		return true
	})
	return page(rows, limit, offset), nil
}

func (r memCampaigns) Save(ctx context.Context, c *models.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("campaigns.Save"); err != nil {
		return err
	}
	for _, other := range r.s.state.campaigns {
		if other.Name == c.Name {
			return duplicate("campaign")
		}
	}
	_ = c.BeforeCreate(nil)
	c.ID = r.s.state.id()
	r.s.state.campaigns[c.ID] = *c
	return nil
}

func (r memCampaigns) Update(ctx context.Context, c *models.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("campaigns.Update"); err != nil {
		return err
	}
	if _, ok := r.s.state.campaigns[c.ID]; !ok {
		return fmt.Errorf("failed to update campaign %d: %w", c.ID, gorm.ErrRecordNotFound)
	}
	for id, other := range r.s.state.campaigns {
		if id != c.ID && other.Name == c.Name {
			return duplicate("campaign")
		}
	}
	_ = c.BeforeUpdate(nil)
	r.s.state.campaigns[c.ID] = *c
	return nil
}

func (r memCampaigns) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("campaigns.UpdateStatus"); err != nil {
		return err
	}
	c, ok := r.s.state.campaigns[id]
	if !ok {
		return fmt.Errorf("failed to update campaign status: %w", gorm.ErrRecordNotFound)
	}
	c.Status = status
	_ = c.BeforeUpdate(nil)
	r.s.state.campaigns[id] = c
	return nil
}

func (r memCampaigns) Delete(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("campaigns.Delete"); err != nil {
		return err
	}
	st := r.s.state
	if _, ok := st.campaigns[id]; !ok {
		return fmt.Errorf("failed to delete campaign %d: %w", id, gorm.ErrRecordNotFound)
	}
	delete(st.campaigns, id)
	maps.DeleteFunc(st.versions, func(_ uint, v models.CampaignVersion) bool { return v.CampaignID == id })
	maps.DeleteFunc(st.audiences, func(_ uint, v models.AudienceConfig) bool { return v.CampaignID == id })
	maps.DeleteFunc(st.actions, func(_ uint, v models.ActionConfig) bool { return v.CampaignID == id })
	maps.DeleteFunc(st.benefits, func(_ uint, v models.BenefitConfig) bool { return v.CampaignID == id })
	maps.DeleteFunc(st.templates, func(_ uint, v models.CommTemplate) bool { return v.CampaignID == id })
	maps.DeleteFunc(st.approvals, func(_ uint, v models.LegalApproval) bool { return v.CampaignID == id })
	maps.DeleteFunc(st.offers, func(_ uint, v models.OfferAssignment) bool { return v.CampaignID == id })
	return nil
}

// versions

type memVersions struct{ s *MemStore }

func (r memVersions) Save(ctx context.Context, v *models.CampaignVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("versions.Save"); err != nil {
		return err
	}
	for _, other := range r.s.state.versions {
		if other.CampaignID == v.CampaignID && other.Version == v.Version {
			return duplicate("campaign version")
		}
	}
	_ = v.BeforeCreate(nil)
	v.ID = r.s.state.id()
	r.s.state.versions[v.ID] = *v
	return nil
}

func (r memVersions) ByCampaignVersion(ctx context.Context, campaignID uint, version int) (*models.CampaignVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.state.versions {
		if v.CampaignID == campaignID && v.Version == version {
			return &v, nil
		}
	}
	return nil, nil
}

func (r memVersions) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := sortedByID(r.s.state.versions, func(v *models.CampaignVersion) bool { return v.CampaignID == campaignID })
	slices.SortFunc(rows, func(a, b *models.CampaignVersion) int { return cmp.Compare(a.Version, b.Version) })
	return rows, nil
}

func (r memVersions) UpdateSnapshot(ctx context.Context, id uint, snapshot models.VersionSnapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("versions.UpdateSnapshot"); err != nil {
		return err
	}
	v, ok := r.s.state.versions[id]
	if !ok {
		return fmt.Errorf("failed to update snapshot of version %d: %w", id, gorm.ErrRecordNotFound)
	}
	v.Snapshot = models.NewSnapshot(snapshot)
	r.s.state.versions[id] = v
	return nil
}

// sub-configs

type memConfigs[T any] struct {
	s      *MemStore
	name   string
	table  func(*memState) map[uint]T
	ident  func(*T) (id, campaignID uint, version int)
	assign func(c *T, id uint, version int)
}

func (r *memConfigs[T]) find(campaignID uint, version int) (T, bool) {
	for _, row := range r.table(r.s.state) {
		if _, c, v := r.ident(&row); c == campaignID && v == version {
			return row, true
		}
	}
	var zero T
	return zero, false
}

func (r *memConfigs[T]) ByCampaignVersion(ctx context.Context, campaignID uint, version int) (*T, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.find(campaignID, version)
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *memConfigs[T]) Upsert(ctx context.Context, cfg *T) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(r.name + ".Upsert"); err != nil {
		return err
	}
	_, campaignID, version := r.ident(cfg)
	id := r.s.state.id()
	if existing, ok := r.find(campaignID, version); ok {
		id, _, _ = r.ident(&existing)
	}
	r.assign(cfg, id, version)
	r.table(r.s.state)[id] = *cfg
	return nil
}

func (r *memConfigs[T]) CopyForward(ctx context.Context, campaignID uint, from, to int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(r.name + ".CopyForward"); err != nil {
		return err
	}
	src, ok := r.find(campaignID, from)
	if !ok {
		return nil
	}
	if _, exists := r.find(campaignID, to); exists {
		return nil
	}
	id := r.s.state.id()
	r.assign(&src, id, to)
	r.table(r.s.state)[id] = src
	return nil
}

// templates

type memTemplates struct{ s *MemStore }

func (r memTemplates) ByID(ctx context.Context, id uint) (*models.CommTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.state.templates[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r memTemplates) ByCampaignVersionChannel(ctx context.Context, campaignID uint, version int, channel models.Channel) (*models.CommTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.state.templates {
		if t.CampaignID == campaignID && t.Version == version && t.Channel == channel {
			return &t, nil
		}
	}
	return nil, nil
}

func (r memTemplates) ListByCampaignVersion(ctx context.Context, campaignID uint, version int) ([]*models.CommTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := sortedByID(r.s.state.templates, func(t *models.CommTemplate) bool {
		return t.CampaignID == campaignID && t.Version == version
	})
	slices.SortFunc(rows, func(a, b *models.CommTemplate) int { return cmp.Compare(a.Channel, b.Channel) })
	return rows, nil
}

func (r memTemplates) Save(ctx context.Context, t *models.CommTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("templates.Save"); err != nil {
		return err
	}
	for _, other := range r.s.state.templates {
		if other.CampaignID == t.CampaignID && other.Version == t.Version && other.Channel == t.Channel {
			return duplicate("template")
		}
	}
	_ = t.BeforeCreate(nil)
	t.ID = r.s.state.id()
	t.Tokens = slices.Clone(t.Tokens)
	r.s.state.templates[t.ID] = *t
	return nil
}

func (r memTemplates) Update(ctx context.Context, t *models.CommTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("templates.Update"); err != nil {
		return err
	}
	if _, ok := r.s.state.templates[t.ID]; !ok {
		return fmt.Errorf("failed to update template %d: %w", t.ID, gorm.ErrRecordNotFound)
	}
	_ = t.BeforeUpdate(nil)
	t.Tokens = slices.Clone(t.Tokens)
	r.s.state.templates[t.ID] = *t
	return nil
}

func (r memTemplates) CopyForward(ctx context.Context, campaignID uint, from, to int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("templates.CopyForward"); err != nil {
		return err
	}
	st := r.s.state
	present := map[models.Channel]bool{}
	var sources []models.CommTemplate
	for _, t := range sortedByID(st.templates, nil) {
		if t.CampaignID != campaignID {
			continue
		}
		switch t.Version {
		case to:
			present[t.Channel] = true
		case from:
			sources = append(sources, *t)
		}
	}
	for _, t := range sources {
		if present[t.Channel] {
			continue
		}
		t.ID = st.id()
		t.UUID = uuid.New()
		t.Version = to
		t.Tokens = slices.Clone(t.Tokens)
		t.LegalStatus = models.LegalStatusInReview
		t.ReviewedBy, t.ReviewedAt, t.UpdatedAt = nil, nil, nil
		t.CreatedAt = time.Now().UTC()
		st.templates[t.ID] = t
	}
	return nil
}

func (r memTemplates) LegalInbox(ctx context.Context, limit int) ([]*models.LegalInboxItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state
	var items []*models.LegalInboxItem
	for _, t := range sortedByID(st.templates, nil) {
		c, ok := st.campaigns[t.CampaignID]
		if !ok || c.CurrentVersion != t.Version {
			continue
		}
		if t.LegalStatus != models.LegalStatusInReview && t.LegalStatus != models.LegalStatusRejected {
			continue
		}
		items = append(items, &models.LegalInboxItem{Template: *t, CampaignName: c.Name})
	}
	slices.SortStableFunc(items, func(a, b *models.LegalInboxItem) int {
		if c := touchedAt(b.Template).Compare(touchedAt(a.Template)); c != 0 {
			return c
		}
		return cmp.Compare(b.Template.ID, a.Template.ID)
	})
	return page(items, limit, 0), nil
}

func touchedAt(t models.CommTemplate) time.Time {
	if t.UpdatedAt != nil {
		return *t.UpdatedAt
	}
	return t.CreatedAt
}

// legal approvals

type memApprovals struct{ s *MemStore }

func (r memApprovals) Save(ctx context.Context, a *models.LegalApproval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("approvals.Save"); err != nil {
		return err
	}
	_ = a.BeforeCreate(nil)
	a.ID = r.s.state.id()
	r.s.state.approvals[a.ID] = *a
	return nil
}

func (r memApprovals) ListByTemplate(ctx context.Context, templateID uint) ([]*models.LegalApproval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := sortedByID(r.s.state.approvals, func(a *models.LegalApproval) bool { return a.TemplateID == templateID })
	slices.Reverse(rows)
	return rows, nil
}

func (r memApprovals) CountByCampaign(ctx context.Context, campaignID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, a := range r.s.state.approvals {
		if a.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

// customers

type memCustomers struct{ s *MemStore }

func (r memCustomers) ByID(ctx context.Context, id uint) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r memCustomers) ByUUID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.state.customers {
		if c.UUID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (r memCustomers) ListAll(ctx context.Context) ([]*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedByID(r.s.state.customers, nil), nil
}

func (r memCustomers) Save(ctx context.Context, c *models.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_ = c.BeforeCreate(nil)
	c.ID = r.s.state.id()
	c.RiskFlags = slices.Clone(c.RiskFlags)
	r.s.state.customers[c.ID] = *c
	return nil
}

func (r memCustomers) SaveBatch(ctx context.Context, customers []*models.Customer) error {
	for _, c := range customers {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// arbitration scores

type memScores struct{ s *MemStore }

func (r memScores) SaveBatch(ctx context.Context, scores []*models.ArbitrationScore) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("scores.SaveBatch"); err != nil {
		return err
	}
	for _, sc := range scores {
		_ = sc.BeforeCreate(nil)
		sc.ID = r.s.state.id()
		r.s.state.scores[sc.ID] = *sc
	}
	return nil
}

func (r memScores) ByFilter(ctx context.Context, f models.ArbitrationScoreFilter, limit, offset int) ([]*models.ArbitrationScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := sortedByID(r.s.state.scores, func(sc *models.ArbitrationScore) bool {
		switch {
		case f.DecisionID != nil && sc.DecisionID != *f.DecisionID:
			return false
		case f.CustomerID != nil && sc.CustomerID != *f.CustomerID:
			return false
		case f.CampaignID != nil && sc.CampaignID != *f.CampaignID:
			return false
		case f.Winner != nil && sc.Winner != *f.Winner:
			return false
		case f.CreatedAfter != nil && sc.CreatedAt.Before(*f.CreatedAfter):
			return false
		case f.CreatedBefore != nil && sc.CreatedAt.After(*f.CreatedBefore):
			return false
		}
		return true
	})
	slices.Reverse(rows)
	return page(rows, limit, offset), nil
}

// audit entries

type memAudits struct{ s *MemStore }

func (r memAudits) Save(ctx context.Context, e *models.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("audits.Save"); err != nil {
		return err
	}
	for _, other := range r.s.state.audits {
		if other.EventID == e.EventID {
			return duplicate("audit entry")
		}
	}
	_ = e.BeforeCreate(nil)
	e.ID = r.s.state.id()
	r.s.state.audits[e.ID] = *e
	return nil
}

func (r memAudits) ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	return r.ByFilter(ctx, models.AuditEntryFilter{EntityType: &entityType, EntityID: &entityID}, 0, 0)
}

// ByFilter returns entries newest first. Ids grow with insertion, so id
// order stands in for the created_at tie-break.
func (r memAudits) ByFilter(ctx context.Context, f models.AuditEntryFilter, limit, offset int) ([]*models.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := sortedByID(r.s.state.audits, func(e *models.AuditEntry) bool {
		switch {
		case f.EntityType != nil && e.EntityType != *f.EntityType:
			return false
		case f.EntityID != nil && e.EntityID != *f.EntityID:
			return false
		case f.Action != nil && e.Action != *f.Action:
			return false
		case f.ActorID != nil && e.ActorID != *f.ActorID:
			return false
		case f.CreatedAfter != nil && e.CreatedAt.Before(*f.CreatedAfter):
			return false
		case f.CreatedBefore != nil && e.CreatedAt.After(*f.CreatedBefore):
			return false
		}
		return true
	})
	slices.Reverse(rows)
	return page(rows, limit, offset), nil
}

// offers

type memOffers struct{ s *MemStore }

func (r memOffers) SaveBatch(ctx context.Context, offers []*models.OfferAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("offers.SaveBatch"); err != nil {
		return err
	}
	for _, o := range offers {
		_ = o.BeforeCreate(nil)
		o.ID = r.s.state.id()
		r.s.state.offers[o.ID] = *o
	}
	return nil
}

func (r memOffers) ByUUID(ctx context.Context, id uuid.UUID) (*models.OfferAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.state.offers {
		if o.UUID == id {
			return &o, nil
		}
	}
	return nil, nil
}

func (r memOffers) MarkRedeemed(ctx context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.state.offers[id]
	if !ok {
		return fmt.Errorf("failed to redeem offer %d: %w", id, gorm.ErrRecordNotFound)
	}
	o.Status = models.OfferStatusRedeemed
	o.RedeemedAt = &at
	r.s.state.offers[id] = o
	return nil
}

func (r memOffers) CountByCampaignCustomer(ctx context.Context, campaignID, customerID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, o := range r.s.state.offers {
		if o.CampaignID == campaignID && o.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (r memOffers) Summary(ctx context.Context, campaignID uint) ([]models.ChannelSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byChannel := map[models.Channel]*models.ChannelSummary{}
	for _, o := range r.s.state.offers {
		if o.CampaignID != campaignID {
			continue
		}
		sum, ok := byChannel[o.Channel]
		if !ok {
			sum = &models.ChannelSummary{Channel: o.Channel}
			byChannel[o.Channel] = sum
		}
		sum.Issued++
		if o.Status == models.OfferStatusRedeemed {
			sum.Redeemed++
		}
	}
	out := make([]models.ChannelSummary, 0, len(byChannel))
	for _, ch := range slices.Sorted(maps.Keys(byChannel)) {
		out = append(out, *byChannel[ch])
	}
	return out, nil
}

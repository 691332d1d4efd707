package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sales_crm_backend/internal/authz"
	"sales_crm_backend/internal/deals/repository"
	"sales_crm_backend/internal/pipeline/domain"
	"sales_crm_backend/internal/webhook"
	"sales_crm_backend/platform/apperr"
	"sales_crm_backend/platform/events"
	"sales_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeDealStore struct {
	mu       sync.Mutex
	deals    map[uuid.UUID]repository.Deal
	writeErr error
	writes   []uuid.UUID

	// When set, UpdateDealStage signals writeStarted and then parks until
	// writeRelease is closed, holding the durable write open for the test.
	writeStarted chan struct{}
	writeRelease chan struct{}
}

func newFakeDealStore() *fakeDealStore {
	return &fakeDealStore{deals: make(map[uuid.UUID]repository.Deal)}
}

func (f *fakeDealStore) GetDeal(ctx context.Context, tenantID, id uuid.UUID) (repository.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deal, ok := f.deals[id]
	if !ok || deal.TenantID != tenantID {
		return repository.Deal{}, repository.ErrNotFound
	}
	return deal, nil
}

func (f *fakeDealStore) List(ctx context.Context, tenantID uuid.UUID, filter *authz.Filter) ([]repository.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Deal
	for _, deal := range f.deals {
		if deal.TenantID != tenantID {
			continue
		}
		if filter != nil && deal.OwnerID != filter.Value {
			continue
		}
		out = append(out, deal)
	}
	return out, nil
}

func (f *fakeDealStore) UpdateDealStage(ctx context.Context, tenantID, dealID, stageID uuid.UUID) (time.Time, error) {
	if f.writeStarted != nil {
		f.writeStarted <- struct{}{}
		<-f.writeRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return time.Time{}, f.writeErr
	}
	deal, ok := f.deals[dealID]
	if !ok {
		return time.Time{}, repository.ErrNotFound
	}
	deal.StageID = stageID
	deal.StageEnteredAt = time.Now()
	f.deals[dealID] = deal
	f.writes = append(f.writes, stageID)
	return deal.StageEnteredAt, nil
}

func (f *fakeDealStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type fakeRegistry struct {
	stages map[uuid.UUID]domain.Stage
}

func (f *fakeRegistry) GetStage(ctx context.Context, tenantID, id uuid.UUID) (domain.Stage, error) {
	stage, ok := f.stages[id]
	if !ok {
		return domain.Stage{}, apperr.NotFound("stage not found")
	}
	return stage, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []webhook.Event
}

func (f *fakeNotifier) Notify(ctx context.Context, event webhook.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.published {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	coord    *Coordinator
	store    *fakeDealStore
	notifier *fakeNotifier
	bus      *recordingBus

	tenantID  uuid.UUID
	owner     authz.Principal
	manager   authz.Principal
	stranger  authz.Principal
	deal      repository.Deal
	openStage domain.Stage
	wonStage  domain.Stage
}

func newFixture(t *testing.T, grace time.Duration) *fixture {
	t.Helper()

	tenantID := uuid.New()
	ownerID := uuid.New()

	openStage := domain.Stage{ID: uuid.New(), TenantID: tenantID, Code: "qualified", Name: "Qualified", SortOrder: 2}
	wonStage := domain.Stage{ID: uuid.New(), TenantID: tenantID, Code: "closed-won", Name: "Closed Won", SortOrder: 5, IsClosedWon: true}
	startStage := domain.Stage{ID: uuid.New(), TenantID: tenantID, Code: "lead", Name: "Lead", SortOrder: 1}

	deal := repository.Deal{
		ID:         uuid.New(),
		TenantID:   tenantID,
		OwnerID:    ownerID,
		Title:      "Acme renewal",
		ValueCents: 1250000,
		StageID:    startStage.ID,
	}

	store := newFakeDealStore()
	store.deals[deal.ID] = deal

	registry := &fakeRegistry{stages: map[uuid.UUID]domain.Stage{
		startStage.ID: startStage,
		openStage.ID:  openStage,
		wonStage.ID:   wonStage,
	}}

	notifier := &fakeNotifier{}
	bus := &recordingBus{}
	coord := newWithGrace(store, registry, notifier, bus, logger.New("development"), grace)

	return &fixture{
		coord:    coord,
		store:    store,
		notifier: notifier,
		bus:      bus,
		tenantID: tenantID,
		owner:    authz.Principal{ID: ownerID, Roles: []string{authz.RoleRepresentative}},
		manager:  authz.Principal{ID: uuid.New(), Roles: []string{authz.RoleManager}},
		stranger: authz.Principal{ID: uuid.New(), Roles: []string{authz.RoleRepresentative}},
		deal:     deal,
		openStage: openStage,
		wonStage:  wonStage,
	}
}

func TestTransitionApplied(t *testing.T) {
	f := newFixture(t, time.Hour)

	res, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.openStage.ID)
	if err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}
	if res.Status != StatusApplied {
		t.Fatalf("status = %q, want %q", res.Status, StatusApplied)
	}
	if f.store.writeCount() != 1 {
		t.Errorf("durable writes = %d, want 1", f.store.writeCount())
	}

	entry, ok := f.coord.overlay.Get(f.deal.ID)
	if !ok {
		t.Fatal("no overlay entry after commit within grace period")
	}
	if entry.State != StateCommitted {
		t.Errorf("overlay state = %v, want %v", entry.State, StateCommitted)
	}
	if entry.StageID != f.openStage.ID {
		t.Errorf("overlay stage = %v, want %v", entry.StageID, f.openStage.ID)
	}

	names := f.bus.names()
	if len(names) != 1 || names[0] != "crm.deal.stage_changed" {
		t.Errorf("published events = %v, want [crm.deal.stage_changed]", names)
	}
	if f.notifier.count() != 0 {
		t.Errorf("notifier called %d times for a non-won stage, want 0", f.notifier.count())
	}
}

func TestTransitionSameStageIsNoop(t *testing.T) {
	f := newFixture(t, time.Hour)

	res, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.deal.StageID)
	if err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}
	if res.Status != StatusNoop {
		t.Fatalf("status = %q, want %q", res.Status, StatusNoop)
	}
	if f.store.writeCount() != 0 {
		t.Errorf("durable writes = %d, want 0", f.store.writeCount())
	}
	if _, ok := f.coord.overlay.Get(f.deal.ID); ok {
		t.Error("noop created an overlay entry")
	}
}

func TestTransitionRepeatOfInFlightTargetIsNoop(t *testing.T) {
	f := newFixture(t, time.Hour)

	if _, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.openStage.ID); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	res, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.openStage.ID)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if res.Status != StatusNoop {
		t.Errorf("status = %q, want %q (overlay already shows target)", res.Status, StatusNoop)
	}
	if f.store.writeCount() != 1 {
		t.Errorf("durable writes = %d, want 1", f.store.writeCount())
	}
}

func TestTransitionInvalidTarget(t *testing.T) {
	f := newFixture(t, time.Hour)

	res, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, uuid.New())
	if err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}
	if res.Status != StatusInvalidTarget {
		t.Fatalf("status = %q, want %q", res.Status, StatusInvalidTarget)
	}
	if f.store.writeCount() != 0 {
		t.Errorf("durable writes = %d, want 0", f.store.writeCount())
	}
}

func TestTransitionForbiddenBeforeAnyWrite(t *testing.T) {
	f := newFixture(t, time.Hour)

	res, err := f.coord.RequestTransition(context.Background(), f.stranger, f.tenantID, f.deal.ID, f.openStage.ID)
	if err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}
	if res.Status != StatusForbidden {
		t.Fatalf("status = %q, want %q", res.Status, StatusForbidden)
	}
	if f.store.writeCount() != 0 {
		t.Errorf("durable writes = %d, want 0", f.store.writeCount())
	}
	if _, ok := f.coord.overlay.Get(f.deal.ID); ok {
		t.Error("forbidden request created an overlay entry")
	}
}

func TestTransitionManagerMayMoveAnyDeal(t *testing.T) {
	f := newFixture(t, time.Hour)

	res, err := f.coord.RequestTransition(context.Background(), f.manager, f.tenantID, f.deal.ID, f.openStage.ID)
	if err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}
	if res.Status != StatusApplied {
		t.Errorf("status = %q, want %q", res.Status, StatusApplied)
	}
}

func TestTransitionRollbackOnWriteFailure(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.store.writeErr = errors.New("connection reset")

	res, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.openStage.ID)
	if err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}
	if res.Status != StatusRolledBack {
		t.Fatalf("status = %q, want %q", res.Status, StatusRolledBack)
	}
	if res.Reason == "" {
		t.Error("rolled back result has no reason")
	}
	if _, ok := f.coord.overlay.Get(f.deal.ID); ok {
		t.Error("overlay entry survived rollback")
	}
	if got := f.coord.ProjectStageID(f.deal); got != f.deal.StageID {
		t.Errorf("projected stage = %v after rollback, want original %v", got, f.deal.StageID)
	}
	if f.notifier.count() != 0 {
		t.Errorf("notifier called %d times after rollback, want 0", f.notifier.count())
	}
	if len(f.bus.names()) != 0 {
		t.Errorf("events published after rollback: %v", f.bus.names())
	}
}

func TestTransitionClosedWonNotifiesExactlyOnce(t *testing.T) {
	f := newFixture(t, time.Hour)

	res, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.wonStage.ID)
	if err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}
	if res.Status != StatusApplied {
		t.Fatalf("status = %q, want %q", res.Status, StatusApplied)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("notifier called %d times, want exactly 1", f.notifier.count())
	}

	event := f.notifier.events[0]
	if event.Type != webhook.EventDealClosedWon {
		t.Errorf("notified type = %q, want %q", event.Type, webhook.EventDealClosedWon)
	}
	if event.TenantID != f.tenantID {
		t.Errorf("notified tenant = %v, want %v", event.TenantID, f.tenantID)
	}

	names := f.bus.names()
	if len(names) != 2 || names[0] != "crm.deal.stage_changed" || names[1] != "crm.deal.closed_won" {
		t.Errorf("published events = %v, want [crm.deal.stage_changed crm.deal.closed_won]", names)
	}

	// A repeat request is a noop and must not notify again.
	res, err = f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.wonStage.ID)
	if err != nil {
		t.Fatalf("repeat transition: %v", err)
	}
	if res.Status != StatusNoop {
		t.Errorf("repeat status = %q, want %q", res.Status, StatusNoop)
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifier called %d times after repeat, want 1", f.notifier.count())
	}
}

func TestPendingReadShowsFreshStageEnteredAt(t *testing.T) {
	f := newFixture(t, time.Hour)

	stale := f.deal
	stale.StageEnteredAt = time.Now().Add(-72 * time.Hour)
	f.store.deals[stale.ID] = stale

	f.store.writeStarted = make(chan struct{})
	f.store.writeRelease = make(chan struct{})

	done := make(chan Result, 1)
	go func() {
		res, _ := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.openStage.ID)
		done <- res
	}()

	// The durable write is parked; the read lands during Pending.
	<-f.store.writeStarted
	got, err := f.coord.GetDeal(context.Background(), f.owner, f.tenantID, f.deal.ID)
	if err != nil {
		t.Fatalf("GetDeal() error = %v", err)
	}
	if got.StageID != f.openStage.ID {
		t.Errorf("pending read stage = %v, want overlay stage %v", got.StageID, f.openStage.ID)
	}
	if time.Since(got.StageEnteredAt) > time.Minute {
		t.Errorf("pending read stageEnteredAt = %v, want reset to now, not the previous stage's timestamp", got.StageEnteredAt)
	}

	close(f.store.writeRelease)
	if res := <-done; res.Status != StatusApplied {
		t.Errorf("status = %q, want %q", res.Status, StatusApplied)
	}
}

func TestTransitionReleasesDealLock(t *testing.T) {
	f := newFixture(t, time.Hour)

	if _, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.openStage.ID); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	if _, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.wonStage.ID); err != nil {
		t.Fatalf("second transition: %v", err)
	}

	f.coord.mu.Lock()
	remaining := len(f.coord.locks)
	f.coord.mu.Unlock()
	if remaining != 0 {
		t.Errorf("lock map holds %d entries after transitions finished, want 0", remaining)
	}
}

func TestCommittedOverlayClearsAfterGrace(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)

	if _, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.openStage.ID); err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := f.coord.overlay.Get(f.deal.ID); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("overlay entry not cleared after grace period")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Durable state already carries the new stage, so the projection is
	// stable across the clear.
	stored, err := f.store.GetDeal(context.Background(), f.tenantID, f.deal.ID)
	if err != nil {
		t.Fatalf("GetDeal() error = %v", err)
	}
	if got := f.coord.ProjectStageID(stored); got != f.openStage.ID {
		t.Errorf("projected stage = %v after clear, want %v", got, f.openStage.ID)
	}
}

func TestListDealsAppliesOverlayAndFilter(t *testing.T) {
	f := newFixture(t, time.Hour)

	otherDeal := repository.Deal{
		ID: uuid.New(), TenantID: f.tenantID, OwnerID: f.stranger.ID,
		Title: "Other deal", StageID: f.deal.StageID,
	}
	f.store.deals[otherDeal.ID] = otherDeal

	if _, err := f.coord.RequestTransition(context.Background(), f.owner, f.tenantID, f.deal.ID, f.openStage.ID); err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}

	// A representative sees only their own deals, with the overlay applied.
	deals, err := f.coord.ListDeals(context.Background(), f.owner, f.tenantID)
	if err != nil {
		t.Fatalf("ListDeals() error = %v", err)
	}
	if len(deals) != 1 {
		t.Fatalf("representative sees %d deals, want 1", len(deals))
	}
	if deals[0].StageID != f.openStage.ID {
		t.Errorf("listed stage = %v, want overlay stage %v", deals[0].StageID, f.openStage.ID)
	}

	// A manager sees the whole tenant.
	deals, err = f.coord.ListDeals(context.Background(), f.manager, f.tenantID)
	if err != nil {
		t.Fatalf("ListDeals() error = %v", err)
	}
	if len(deals) != 2 {
		t.Errorf("manager sees %d deals, want 2", len(deals))
	}
}

func TestGetDealForbiddenForStranger(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, err := f.coord.GetDeal(context.Background(), f.stranger, f.tenantID, f.deal.ID)
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Errorf("error kind = %v, want %v", apperr.GetKind(err), apperr.KindForbidden)
	}
}

func TestOverlaySupersedingRequestWins(t *testing.T) {
	store := NewOverlayStore(time.Hour)
	dealID := uuid.New()
	first := uuid.New()
	second := uuid.New()

	seq1 := store.Begin(dealID, first)
	seq2 := store.Begin(dealID, second)

	// The superseded request finishing (either way) must not disturb the
	// newer entry.
	store.Commit(dealID, seq1)
	if entry, ok := store.Get(dealID); !ok || entry.StageID != second || entry.State != StatePending {
		t.Fatalf("entry = %+v, want pending %v", entry, second)
	}
	store.Rollback(dealID, seq1)
	if entry, ok := store.Get(dealID); !ok || entry.StageID != second {
		t.Fatalf("entry = %+v, want %v after stale rollback", entry, second)
	}

	store.Commit(dealID, seq2)
	entry, ok := store.Get(dealID)
	if !ok || entry.State != StateCommitted {
		t.Fatalf("entry = %+v, want committed", entry)
	}
}

func TestOverlayRollbackClearsEntry(t *testing.T) {
	store := NewOverlayStore(time.Hour)
	dealID := uuid.New()

	seq := store.Begin(dealID, uuid.New())
	store.Rollback(dealID, seq)

	if _, ok := store.Get(dealID); ok {
		t.Error("entry present after rollback")
	}
}

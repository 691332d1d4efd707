package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"sales_crm_backend/internal/authz"
	"sales_crm_backend/internal/pipeline/domain"
	"sales_crm_backend/internal/pipeline/repository"
	"sales_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

var (
	testTenant  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	testManager = authz.Principal{
		ID:    uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002"),
		Roles: []string{authz.RoleManager},
	}
)

// fakeStore is an in-memory repository.Store for service tests.
type fakeStore struct {
	stages    map[uuid.UUID]domain.Stage
	dealRefs  map[uuid.UUID]int
	swapCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stages:   make(map[uuid.UUID]domain.Stage),
		dealRefs: make(map[uuid.UUID]int),
	}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateStageParams) (domain.Stage, error) {
	for _, s := range f.stages {
		if s.TenantID != params.TenantID {
			continue
		}
		if s.Code == params.Code {
			return domain.Stage{}, repository.ErrDuplicateCode
		}
		if s.SortOrder == params.SortOrder {
			return domain.Stage{}, repository.ErrDuplicateSortOrder
		}
	}
	stage := domain.Stage{
		ID:           uuid.New(),
		TenantID:     params.TenantID,
		Code:         params.Code,
		Name:         params.Name,
		SortOrder:    params.SortOrder,
		IsClosedWon:  params.IsClosedWon,
		IsClosedLost: params.IsClosedLost,
		Config:       params.Config,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.stages[stage.ID] = stage
	return stage, nil
}

func (f *fakeStore) Get(_ context.Context, tenantID, id uuid.UUID) (domain.Stage, error) {
	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID {
		return domain.Stage{}, repository.ErrNotFound
	}
	return stage, nil
}

func (f *fakeStore) ListOrdered(_ context.Context, tenantID uuid.UUID) ([]domain.Stage, error) {
	stages := make([]domain.Stage, 0, len(f.stages))
	for _, s := range f.stages {
		if s.TenantID == tenantID {
			stages = append(stages, s)
		}
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].SortOrder < stages[j].SortOrder })
	return stages, nil
}

func (f *fakeStore) Update(_ context.Context, tenantID, id uuid.UUID, params repository.UpdateStageParams) (domain.Stage, error) {
	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID {
		return domain.Stage{}, repository.ErrNotFound
	}
	if params.SortOrder != nil {
		for _, s := range f.stages {
			if s.ID != id && s.TenantID == tenantID && s.SortOrder == *params.SortOrder {
				return domain.Stage{}, repository.ErrDuplicateSortOrder
			}
		}
	}
	if params.Name != nil {
		stage.Name = *params.Name
	}
	if params.SortOrder != nil {
		stage.SortOrder = *params.SortOrder
	}
	if params.IsClosedWon != nil {
		stage.IsClosedWon = *params.IsClosedWon
	}
	if params.IsClosedLost != nil {
		stage.IsClosedLost = *params.IsClosedLost
	}
	if params.ConfigSet {
		stage.Config = params.Config
	}
	stage.UpdatedAt = time.Now()
	f.stages[id] = stage
	return stage, nil
}

func (f *fakeStore) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	stage, ok := f.stages[id]
	if !ok || stage.TenantID != tenantID {
		return repository.ErrNotFound
	}
	delete(f.stages, id)
	return nil
}

func (f *fakeStore) CountDealsInStage(_ context.Context, _, id uuid.UUID) (int, error) {
	return f.dealRefs[id], nil
}

func (f *fakeStore) SwapOrder(_ context.Context, tenantID, a, b uuid.UUID) error {
	f.swapCalls++
	sa, okA := f.stages[a]
	sb, okB := f.stages[b]
	if !okA || !okB || sa.TenantID != tenantID || sb.TenantID != tenantID {
		return repository.ErrNotFound
	}
	sa.SortOrder, sb.SortOrder = sb.SortOrder, sa.SortOrder
	f.stages[a] = sa
	f.stages[b] = sb
	return nil
}

func seedStage(t *testing.T, store *fakeStore, code string, order int, won, lost, system bool) domain.Stage {
	t.Helper()
	stage, err := store.Create(context.Background(), repository.CreateStageParams{
		TenantID:     testTenant,
		Code:         code,
		Name:         code,
		SortOrder:    order,
		IsClosedWon:  won,
		IsClosedLost: lost,
	})
	if err != nil {
		t.Fatalf("seed stage %s: %v", code, err)
	}
	if system {
		stage.IsSystem = true
		store.stages[stage.ID] = stage
	}
	return stage
}

func TestCreateStageValidation(t *testing.T) {
	svc := New(newFakeStore(), nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateStageInput
	}{
		{"empty code", CreateStageInput{Code: "", Name: "Lead"}},
		{"uppercase code", CreateStageInput{Code: "Lead", Name: "Lead"}},
		{"missing name", CreateStageInput{Code: "lead"}},
		{"both closed flags", CreateStageInput{Code: "end", Name: "End", IsClosedWon: true, IsClosedLost: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateStage(ctx, testTenant, tc.input)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateStageDuplicateCode(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()
	seedStage(t, store, "lead", 1, false, false, false)

	_, err := svc.CreateStage(ctx, testTenant, CreateStageInput{Code: "lead", Name: "Lead again"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestClosedWonFlagIsUnique(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()
	won := seedStage(t, store, "closed_won", 3, true, false, false)

	_, err := svc.CreateStage(ctx, testTenant, CreateStageInput{Code: "also_won", Name: "Won 2", IsClosedWon: true})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict creating second closed-won stage, got %v", err)
	}

	// The existing holder must be unchanged.
	after, _ := store.Get(ctx, testTenant, won.ID)
	if !after.IsClosedWon {
		t.Fatal("existing closed-won holder lost its flag")
	}

	// Updating a different stage to claim the flag also conflicts.
	other := seedStage(t, store, "lead", 1, false, false, false)
	wantWon := true
	_, err = svc.UpdateStage(ctx, testTenant, other.ID, UpdateStageInput{IsClosedWon: &wantWon})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict updating second stage to closed-won, got %v", err)
	}

	// The holder may keep its own flag through an update.
	name := "Closed Won"
	if _, err := svc.UpdateStage(ctx, testTenant, won.ID, UpdateStageInput{Name: &name, IsClosedWon: &wantWon}); err != nil {
		t.Fatalf("holder updating itself should pass: %v", err)
	}
}

func TestAtMostOneClosedFlagAfterMutations(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()

	seedStage(t, store, "won", 10, true, false, false)
	seedStage(t, store, "lost", 11, false, true, false)
	lead := seedStage(t, store, "lead", 1, false, false, false)

	flag := true
	_, _ = svc.UpdateStage(ctx, testTenant, lead.ID, UpdateStageInput{IsClosedWon: &flag})
	_, _ = svc.UpdateStage(ctx, testTenant, lead.ID, UpdateStageInput{IsClosedLost: &flag})
	_, _ = svc.CreateStage(ctx, testTenant, CreateStageInput{Code: "won2", Name: "w", IsClosedWon: true})

	stages, _ := svc.ListOrdered(ctx, testTenant)
	wonCount, lostCount := 0, 0
	for _, s := range stages {
		if s.IsClosedWon {
			wonCount++
		}
		if s.IsClosedLost {
			lostCount++
		}
	}
	if wonCount != 1 || lostCount != 1 {
		t.Fatalf("closed-flag invariant violated: %d won, %d lost", wonCount, lostCount)
	}
}

func TestDeleteSystemStageIsProtected(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()
	sys := seedStage(t, store, "lead", 1, false, false, true)
	store.dealRefs[sys.ID] = 5

	err := svc.DeleteStage(ctx, testManager, testTenant, sys.ID)
	if !apperr.Is(err, apperr.KindProtected) {
		t.Fatalf("expected protected error, got %v", err)
	}
}

func TestDeleteReferencedStageReportsBlockingCount(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()
	stage := seedStage(t, store, "proposal", 2, false, false, false)
	store.dealRefs[stage.ID] = 3

	err := svc.DeleteStage(ctx, testManager, testTenant, stage.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	details, ok := err.(*apperr.Error).Details.(map[string]any)
	if !ok || details["blockingDeals"] != 3 {
		t.Fatalf("expected blockingDeals=3 in details, got %v", err.(*apperr.Error).Details)
	}

	// Unreferenced stages delete cleanly.
	store.dealRefs[stage.ID] = 0
	if err := svc.DeleteStage(ctx, testManager, testTenant, stage.ID); err != nil {
		t.Fatalf("unreferenced delete should succeed: %v", err)
	}
}

func TestDeleteRequiresDeleteGrant(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()
	stage := seedStage(t, store, "proposal", 2, false, false, false)

	// A principal with no recognized role is refused before the store is
	// consulted.
	nobody := authz.Principal{ID: uuid.New()}
	err := svc.DeleteStage(ctx, nobody, testTenant, stage.ID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := store.Get(ctx, testTenant, stage.ID); err != nil {
		t.Fatal("stage was deleted despite the failed delete gate")
	}

	rep := authz.Principal{ID: uuid.New(), Roles: []string{authz.RoleRepresentative}}
	if err := svc.DeleteStage(ctx, rep, testTenant, stage.ID); err != nil {
		t.Fatalf("representative passes the coarse delete gate: %v", err)
	}
}

func TestDuplicateSortOrderIsConflict(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()
	seedStage(t, store, "lead", 1, false, false, false)
	qualified := seedStage(t, store, "qualified", 2, false, false, false)

	_, err := svc.CreateStage(ctx, testTenant, CreateStageInput{Code: "proposal", Name: "Proposal", SortOrder: 1})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict creating a stage at a taken order, got %v", err)
	}

	order := 1
	_, err = svc.UpdateStage(ctx, testTenant, qualified.ID, UpdateStageInput{SortOrder: &order})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict moving a stage to a taken order, got %v", err)
	}
}

func TestReorderSwapsOnlyNeighborPair(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()

	lead := seedStage(t, store, "lead", 1, false, false, false)
	qualified := seedStage(t, store, "qualified", 2, false, false, false)
	proposal := seedStage(t, store, "proposal", 3, false, false, false)

	stages, err := svc.Reorder(ctx, testTenant, qualified.ID, domain.DirectionUp)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}

	byCode := map[string]int{}
	for _, s := range stages {
		byCode[s.Code] = s.SortOrder
	}
	if byCode["qualified"] != 1 || byCode["lead"] != 2 {
		t.Fatalf("expected pairwise swap, got %v", byCode)
	}
	if byCode["proposal"] != 3 {
		t.Fatalf("third stage order changed: %v", byCode)
	}

	_ = lead
	_ = proposal
}

func TestReorderBoundaryIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()

	first := seedStage(t, store, "lead", 1, false, false, false)
	last := seedStage(t, store, "won", 2, true, false, false)

	if _, err := svc.Reorder(ctx, testTenant, first.ID, domain.DirectionUp); err != nil {
		t.Fatalf("first-up should be a no-op: %v", err)
	}
	if _, err := svc.Reorder(ctx, testTenant, last.ID, domain.DirectionDown); err != nil {
		t.Fatalf("last-down should be a no-op: %v", err)
	}
	if store.swapCalls != 0 {
		t.Fatalf("boundary moves must not hit the store, got %d swaps", store.swapCalls)
	}
}

// Package coordinator applies deal stage transitions with optimistic
// read-side overlays: callers see the target stage immediately while the
// durable write completes in the background of the request round trip.
package coordinator

import (
	"context"
	"sync"
	"time"

	"sales_crm_backend/internal/authz"
	"sales_crm_backend/internal/deals/repository"
	"sales_crm_backend/internal/events"
	"sales_crm_backend/internal/pipeline/domain"
	"sales_crm_backend/internal/webhook"
	"sales_crm_backend/platform/apperr"
	"sales_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Status is the outcome of a transition request.
type Status string

const (
	StatusApplied       Status = "applied"
	StatusNoop          Status = "noop"
	StatusInvalidTarget Status = "invalidTarget"
	StatusForbidden     Status = "forbidden"
	StatusRolledBack    Status = "rolledBack"
)

// Result is returned to the transport layer for every transition request.
type Result struct {
	Status Status
	Reason string
}

// DealStore is the durable deal state the coordinator reads and writes.
type DealStore interface {
	GetDeal(ctx context.Context, tenantID, id uuid.UUID) (repository.Deal, error)
	List(ctx context.Context, tenantID uuid.UUID, filter *authz.Filter) ([]repository.Deal, error)
	UpdateDealStage(ctx context.Context, tenantID, dealID, stageID uuid.UUID) (time.Time, error)
}

// StageRegistry resolves transition targets against the pipeline.
type StageRegistry interface {
	GetStage(ctx context.Context, tenantID, id uuid.UUID) (domain.Stage, error)
}

// Notifier hands domain occurrences to the outbound webhook subsystem.
type Notifier interface {
	Notify(ctx context.Context, event webhook.Event)
}

// commitGrace is how long a committed overlay stays visible so a reader
// that raced the durable write never observes a stage snap-back.
const commitGrace = 1500 * time.Millisecond

// Coordinator serializes durable writes per deal and maintains the
// optimistic overlay consulted by the read path.
type Coordinator struct {
	deals    DealStore
	stages   StageRegistry
	overlay  *OverlayStore
	notifier Notifier
	bus      events.Bus
	log      *logger.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*dealLock
}

// New creates a coordinator with the default commit grace period.
func New(deals DealStore, stages StageRegistry, notifier Notifier, bus events.Bus, log *logger.Logger) *Coordinator {
	return newWithGrace(deals, stages, notifier, bus, log, commitGrace)
}

func newWithGrace(deals DealStore, stages StageRegistry, notifier Notifier, bus events.Bus, log *logger.Logger, grace time.Duration) *Coordinator {
	return &Coordinator{
		deals:    deals,
		stages:   stages,
		overlay:  NewOverlayStore(grace),
		notifier: notifier,
		bus:      bus,
		log:      log,
		locks:    make(map[uuid.UUID]*dealLock),
	}
}

// RequestTransition moves a deal to another stage. Validation failures
// return a terminal Result without touching durable state; only a write
// that was actually issued and failed produces StatusRolledBack.
func (c *Coordinator) RequestTransition(ctx context.Context, principal authz.Principal, tenantID, dealID, toStageID uuid.UUID) (Result, error) {
	const op = "coordinator.RequestTransition"

	deal, err := c.deals.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		if err == repository.ErrNotFound {
			return Result{}, apperr.NotFound("deal not found").WithOp(op)
		}
		return Result{}, apperr.Wrap(apperr.KindInternal, "failed to load deal", err).WithOp(op)
	}

	// Compare against the projected stage, so a repeat of an in-flight
	// request is a noop rather than a duplicate write.
	if c.ProjectStageID(deal) == toStageID {
		c.log.DealTransition(dealID.String(), toStageID.String(), string(StatusNoop))
		return Result{Status: StatusNoop}, nil
	}

	stage, err := c.stages.GetStage(ctx, tenantID, toStageID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			c.log.DealTransition(dealID.String(), toStageID.String(), string(StatusInvalidTarget))
			return Result{Status: StatusInvalidTarget, Reason: "target stage does not exist"}, nil
		}
		return Result{}, apperr.Wrap(apperr.KindInternal, "failed to resolve target stage", err).WithOp(op)
	}

	if !authz.CanWrite(principal, &deal.OwnerID) {
		c.log.DealTransition(dealID.String(), toStageID.String(), string(StatusForbidden))
		return Result{Status: StatusForbidden, Reason: "not permitted to modify this deal"}, nil
	}

	seq := c.overlay.Begin(dealID, toStageID)

	// Writes for the same deal issue one at a time in lock acquisition
	// order, so overlapping requests reach storage in arrival order and
	// the last writer wins.
	unlock := c.lockDeal(dealID)
	_, err = c.deals.UpdateDealStage(ctx, tenantID, dealID, toStageID)
	unlock()

	if err != nil {
		c.overlay.Rollback(dealID, seq)
		c.log.DealTransition(dealID.String(), toStageID.String(), string(StatusRolledBack))
		return Result{Status: StatusRolledBack, Reason: "stage change could not be saved"}, nil
	}

	c.overlay.Commit(dealID, seq)
	c.log.DealTransition(dealID.String(), toStageID.String(), string(StatusApplied))

	c.bus.Publish(ctx, events.DealStageChanged{
		BaseEvent:   events.NewBaseEvent(),
		DealID:      deal.ID,
		TenantID:    tenantID,
		OwnerID:     deal.OwnerID,
		FromStageID: deal.StageID,
		ToStageID:   toStageID,
	})

	if stage.IsClosedWon {
		c.bus.Publish(ctx, events.DealClosedWon{
			BaseEvent:  events.NewBaseEvent(),
			DealID:     deal.ID,
			TenantID:   tenantID,
			OwnerID:    deal.OwnerID,
			StageID:    stage.ID,
			StageCode:  stage.Code,
			Title:      deal.Title,
			ValueCents: deal.ValueCents,
		})
		c.notifier.Notify(ctx, webhook.Event{
			Type:     webhook.EventDealClosedWon,
			TenantID: tenantID,
			Payload: map[string]any{
				"dealId":     deal.ID.String(),
				"title":      deal.Title,
				"valueCents": deal.ValueCents,
				"stageCode":  stage.Code,
				"ownerId":    deal.OwnerID.String(),
			},
			Timestamp: time.Now().UTC(),
		})
	}

	return Result{Status: StatusApplied}, nil
}

// GetDeal returns one deal with the overlay projection applied.
func (c *Coordinator) GetDeal(ctx context.Context, principal authz.Principal, tenantID, dealID uuid.UUID) (repository.Deal, error) {
	const op = "coordinator.GetDeal"

	deal, err := c.deals.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.Deal{}, apperr.NotFound("deal not found").WithOp(op)
		}
		return repository.Deal{}, apperr.Wrap(apperr.KindInternal, "failed to load deal", err).WithOp(op)
	}
	if !authz.CanRead(principal, &deal.OwnerID, authz.KindDeal) {
		return repository.Deal{}, apperr.Forbidden("not permitted to view this deal").WithOp(op)
	}
	return c.Project(deal), nil
}

// ListDeals returns the tenant's deals visible to the principal, each with
// the overlay projection applied.
func (c *Coordinator) ListDeals(ctx context.Context, principal authz.Principal, tenantID uuid.UUID) ([]repository.Deal, error) {
	const op = "coordinator.ListDeals"

	filter := authz.RecordFilter(principal, authz.KindDeal, "owner_id")
	deals, err := c.deals.List(ctx, tenantID, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list deals", err).WithOp(op)
	}
	for i := range deals {
		deals[i] = c.Project(deals[i])
	}
	return deals, nil
}

// Project returns the deal as readers should see it. When an overlay entry
// is live, both the stage and its entry timestamp come from the overlay;
// otherwise the durable assignment passes through untouched.
func (c *Coordinator) Project(deal repository.Deal) repository.Deal {
	if entry, ok := c.overlay.Get(deal.ID); ok {
		deal.StageID = entry.StageID
		deal.StageEnteredAt = entry.EnteredAt
	}
	return deal
}

// ProjectStageID is the stage component of Project.
func (c *Coordinator) ProjectStageID(deal repository.Deal) uuid.UUID {
	return c.Project(deal).StageID
}

// dealLock serializes durable writes for a single deal while it is
// referenced by at least one in-flight request.
type dealLock struct {
	mu   sync.Mutex
	refs int
}

// lockDeal acquires the deal's write lock and returns the release func.
// The map entry is dropped once no request holds or awaits the lock, so
// the map only ever tracks deals with a transition in flight.
func (c *Coordinator) lockDeal(dealID uuid.UUID) func() {
	c.mu.Lock()
	lock, ok := c.locks[dealID]
	if !ok {
		lock = &dealLock{}
		c.locks[dealID] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		c.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, dealID)
		}
		c.mu.Unlock()
	}
}

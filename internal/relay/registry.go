package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localmind/backend/internal/logger"
	"go.uber.org/zap"
)

var (
	ErrGenerationNotFound = errors.New("generation not found")
	ErrNotOwner           = errors.New("generation belongs to another user")
	ErrTooManyGenerations = errors.New("too many active generations")
)

// StopResult says how a stop request was honoured
type StopResult string

const (
	StopLocal     StopResult = "local"
	StopForwarded StopResult = "forwarded"
)

// Coordinator shares generation ownership between server instances and carries
// stop requests to the instance that owns the stream.
type Coordinator interface {
	Announce(ctx context.Context, generationID, ownerID string, ttl time.Duration) error
	Forget(ctx context.Context, generationID string) error
	// Owner returns ErrGenerationNotFound when no instance runs the generation
	Owner(ctx context.Context, generationID string) (string, error)
	PublishStop(ctx context.Context, generationID, ownerID string) error
}

type generation struct {
	ownerID   string
	cancel    context.CancelCauseFunc
	startedAt time.Time
}

// Registry tracks generations running on this instance
type Registry struct {
	mu       sync.Mutex
	active   map[string]*generation
	perOwner map[string]int

	maxPerOwner int
	ttl         time.Duration
	coordinator Coordinator

	// OnChange observes the number of active generations
	OnChange func(active int)
}

// NewRegistry creates a registry. maxPerOwner <= 0 disables the per-user limit.
// ttl bounds how long ownership records live in the coordinator.
func NewRegistry(maxPerOwner int, ttl time.Duration, coordinator Coordinator) *Registry {
	return &Registry{
		active:      make(map[string]*generation),
		perOwner:    make(map[string]int),
		maxPerOwner: maxPerOwner,
		ttl:         ttl,
		coordinator: coordinator,
	}
}

// Start registers a new generation for ownerID. The returned context is cancelled with
// ErrStopped by Stop, and with context.Canceled by release. release must be called once
// the generation is over.
func (r *Registry) Start(parent context.Context, ownerID string) (ctx context.Context, generationID string, release func(), err error) {
	r.mu.Lock()
	if r.maxPerOwner > 0 && r.perOwner[ownerID] >= r.maxPerOwner {
		r.mu.Unlock()
		return nil, "", nil, ErrTooManyGenerations
	}

	ctx, cancel := context.WithCancelCause(parent)
	generationID = uuid.NewString()
	r.active[generationID] = &generation{ownerID: ownerID, cancel: cancel, startedAt: time.Now()}
	r.perOwner[ownerID]++
	count := len(r.active)
	r.mu.Unlock()

	r.notify(count)

	if r.coordinator != nil {
		if err := r.coordinator.Announce(ctx, generationID, ownerID, r.ttl); err != nil {
			// stop still works on this instance
			logger.Log.Warn("Failed to announce generation", logger.WithGenerationID(generationID), zap.Error(err))
		}
	}

	var once sync.Once
	release = func() {
		once.Do(func() {
			cancel(context.Canceled)
			r.remove(generationID)
			if r.coordinator != nil {
				fctx, fcancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer fcancel()
				if err := r.coordinator.Forget(fctx, generationID); err != nil {
					logger.Log.Debug("Failed to forget generation", logger.WithGenerationID(generationID), zap.Error(err))
				}
			}
		})
	}

	return ctx, generationID, release, nil
}

// Stop cancels generationID on behalf of ownerID. Generations running on another
// instance are stopped through the coordinator.
func (r *Registry) Stop(ctx context.Context, generationID, ownerID string) (StopResult, error) {
	if r.CancelLocal(generationID, ownerID) {
		return StopLocal, nil
	}

	r.mu.Lock()
	gen, exists := r.active[generationID]
	r.mu.Unlock()
	if exists && gen.ownerID != ownerID {
		return "", ErrNotOwner
	}

	if r.coordinator == nil {
		return "", ErrGenerationNotFound
	}

	owner, err := r.coordinator.Owner(ctx, generationID)
	if err != nil {
		return "", err
	}
	if owner != ownerID {
		return "", ErrNotOwner
	}
	if err := r.coordinator.PublishStop(ctx, generationID, ownerID); err != nil {
		return "", err
	}
	return StopForwarded, nil
}

// CancelLocal cancels a generation running on this instance if ownerID owns it.
// It is also the handler for stop requests arriving from other instances.
func (r *Registry) CancelLocal(generationID, ownerID string) bool {
	r.mu.Lock()
	gen, ok := r.active[generationID]
	r.mu.Unlock()

	if !ok || gen.ownerID != ownerID {
		return false
	}
	gen.cancel(ErrStopped)
	logger.Log.Info("Generation stopped",
		logger.WithGenerationID(generationID),
		logger.WithUserID(ownerID),
		zap.Duration("after", time.Since(gen.startedAt)),
	)
	return true
}

// Active returns the number of running generations
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// ActiveFor returns the number of running generations owned by ownerID
func (r *Registry) ActiveFor(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perOwner[ownerID]
}

// Shutdown stops every generation, used on server shutdown
func (r *Registry) Shutdown() {
	r.mu.Lock()
	gens := make([]*generation, 0, len(r.active))
	for _, g := range r.active {
		gens = append(gens, g)
	}
	r.mu.Unlock()

	for _, g := range gens {
		g.cancel(context.Canceled)
	}
}

func (r *Registry) remove(generationID string) {
	r.mu.Lock()
	gen, ok := r.active[generationID]
	if ok {
		delete(r.active, generationID)
		r.perOwner[gen.ownerID]--
		if r.perOwner[gen.ownerID] <= 0 {
			delete(r.perOwner, gen.ownerID)
		}
	}
	count := len(r.active)
	r.mu.Unlock()

	if ok {
		r.notify(count)
	}
}

func (r *Registry) notify(count int) {
	if r.OnChange != nil {
		r.OnChange(count)
	}
}

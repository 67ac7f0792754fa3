package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
)

// MemoryStorage backs the in-memory repositories used when no database is
// configured.
type MemoryStorage struct {
	invocations map[string]*domain.Invocation
	targets     map[string]*domain.TargetHealth
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		invocations: make(map[string]*domain.Invocation),
		targets:     make(map[string]*domain.TargetHealth),
	}
}

func invocationKey(commandID, targetID string) string {
	return commandID + "/" + targetID
}

// -----------------------------------------------------------------------------
// Invocation Repository
// -----------------------------------------------------------------------------

type InvocationRepo struct {
	store *MemoryStorage
}

func NewInvocationRepo(store *MemoryStorage) *InvocationRepo {
	return &InvocationRepo{store: store}
}

func (r *InvocationRepo) Save(ctx context.Context, inv *domain.Invocation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *inv
	if cp.DispatchedAt.IsZero() {
		cp.DispatchedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	r.store.invocations[invocationKey(inv.CommandID, inv.TargetID)] = &cp
	return nil
}

func (r *InvocationRepo) Get(ctx context.Context, commandID, targetID string) (*domain.Invocation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	inv, ok := r.store.invocations[invocationKey(commandID, targetID)]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *InvocationRepo) UpdateStatus(
	ctx context.Context,
	commandID, targetID string,
	status domain.InvocationStatus,
	lastError string,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if inv, ok := r.store.invocations[invocationKey(commandID, targetID)]; ok {
		inv.Status = status
		inv.LastError = lastError
		inv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *InvocationRepo) MarkRequeued(ctx context.Context, commandID, targetID, lastError string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if inv, ok := r.store.invocations[invocationKey(commandID, targetID)]; ok {
		inv.Requeues++
		inv.LastError = lastError
		inv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *InvocationRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Invocation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]*domain.Invocation, 0, len(r.store.invocations))
	for _, inv := range r.store.invocations {
		cp := *inv
		result = append(result, &cp)
	}
	// Newest first
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].UpdatedAt.After(result[i].UpdatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *InvocationRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var deleted int64
	for k, inv := range r.store.invocations {
		if inv.Status.IsTerminal() && inv.UpdatedAt.Before(cutoff) {
			delete(r.store.invocations, k)
			deleted++
		}
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Target Repository
// -----------------------------------------------------------------------------

type TargetRepo struct {
	store *MemoryStorage
}

func NewTargetRepo(store *MemoryStorage) *TargetRepo {
	return &TargetRepo{store: store}
}

func (r *TargetRepo) SaveHealth(ctx context.Context, th *domain.TargetHealth) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *th
	r.store.targets[th.TargetID] = &cp
	return nil
}

func (r *TargetRepo) Get(ctx context.Context, targetID string) (*domain.TargetHealth, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	th, ok := r.store.targets[targetID]
	if !ok {
		return nil, nil
	}
	cp := *th
	return &cp, nil
}

func (r *TargetRepo) List(ctx context.Context) ([]*domain.TargetHealth, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]*domain.TargetHealth, 0, len(r.store.targets))
	for _, th := range r.store.targets {
		cp := *th
		result = append(result, &cp)
	}
	return result, nil
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
)

func TestInvocationRepo_SaveAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewInvocationRepo(NewMemoryStorage())

	inv := &domain.Invocation{
		CommandID: "cmd-1",
		TargetID:  "i-1",
		Status:    domain.StatusPending,
	}
	if err := repo.Save(ctx, inv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := repo.UpdateStatus(ctx, "cmd-1", "i-1", domain.StatusSuccess, ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := repo.Get(ctx, "cmd-1", "i-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Status != domain.StatusSuccess {
		t.Errorf("expected Success, got %+v", got)
	}

	if missing, _ := repo.Get(ctx, "cmd-1", "i-2"); missing != nil {
		t.Errorf("expected nil for unknown invocation, got %+v", missing)
	}
}

func TestInvocationRepo_MarkRequeued(t *testing.T) {
	ctx := context.Background()
	repo := NewInvocationRepo(NewMemoryStorage())

	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-1", TargetID: "i-1", Status: domain.StatusPending})
	_ = repo.MarkRequeued(ctx, "cmd-1", "i-1", "transport glitch")
	_ = repo.MarkRequeued(ctx, "cmd-1", "i-1", "transport glitch")

	got, _ := repo.Get(ctx, "cmd-1", "i-1")
	if got.Requeues != 2 {
		t.Errorf("expected 2 requeues, got %d", got.Requeues)
	}
	if got.LastError != "transport glitch" {
		t.Errorf("unexpected last error %q", got.LastError)
	}
}

func TestInvocationRepo_DeleteTerminalOlderThan(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	repo := NewInvocationRepo(store)

	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-old", TargetID: "i-1", Status: domain.StatusSuccess})
	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-run", TargetID: "i-1", Status: domain.StatusInProgress})

	deleted, err := repo.DeleteTerminalOlderThan(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("DeleteTerminalOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	// Non-terminal invocations survive regardless of age
	if got, _ := repo.Get(ctx, "cmd-run", "i-1"); got == nil {
		t.Error("in-progress invocation should not be pruned")
	}
}

func TestTargetRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewTargetRepo(NewMemoryStorage())

	_ = repo.SaveHealth(ctx, &domain.TargetHealth{TargetID: "i-1", State: domain.HealthHealthy, CheckedAt: time.Now()})
	_ = repo.SaveHealth(ctx, &domain.TargetHealth{TargetID: "i-1", State: domain.HealthUnhealthy, CheckedAt: time.Now()})

	got, err := repo.Get(ctx, "i-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != domain.HealthUnhealthy {
		t.Errorf("expected Unhealthy, got %s", got.State)
	}

	list, _ := repo.List(ctx)
	if len(list) != 1 {
		t.Errorf("expected 1 target, got %d", len(list))
	}
}

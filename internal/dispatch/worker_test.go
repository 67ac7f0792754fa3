package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	"github.com/vietddude/cmdwatch/internal/infra/controlplane"
	redisclient "github.com/vietddude/cmdwatch/internal/infra/redis"
	"github.com/vietddude/cmdwatch/internal/infra/storage/memory"
	"github.com/vietddude/cmdwatch/internal/watch"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []redisclient.WatchJob
}

func (q *fakeQueue) PushJob(ctx context.Context, job redisclient.WatchJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) PopJob(ctx context.Context) (redisclient.WatchJob, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return redisclient.WatchJob{}, false, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true, nil
}

func (q *fakeQueue) QueueDepth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

type fakeAwaiter struct {
	status domain.InvocationStatus
	err    error
	calls  int
}

func (a *fakeAwaiter) Await(ctx context.Context, commandID, targetID string, desired domain.InvocationStatus, timeout, interval time.Duration) (domain.InvocationStatus, error) {
	a.calls++
	return a.status, a.err
}

func newWorkerFixture(awaiter *fakeAwaiter) (*Worker, *fakeQueue, *memory.InvocationRepo) {
	queue := &fakeQueue{}
	repo := memory.NewInvocationRepo(memory.NewMemoryStorage())
	w := NewWorker(DefaultWorkerConfig(), queue, awaiter, repo)
	return w, queue, repo
}

func pendingJob() redisclient.WatchJob {
	return redisclient.WatchJob{
		CommandID: "cmd-1",
		TargetID:  "i-1",
		Desired:   string(domain.StatusSuccess),
		Timeout:   5 * time.Second,
		Interval:  time.Second,
	}
}

func TestWorker_Success(t *testing.T) {
	ctx := context.Background()
	awaiter := &fakeAwaiter{status: domain.StatusSuccess}
	w, queue, repo := newWorkerFixture(awaiter)

	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-1", TargetID: "i-1", Status: domain.StatusPending})
	w.process(ctx, pendingJob())

	inv, _ := repo.Get(ctx, "cmd-1", "i-1")
	if inv.Status != domain.StatusSuccess {
		t.Errorf("expected Success, got %s", inv.Status)
	}
	if depth, _ := queue.QueueDepth(ctx); depth != 0 {
		t.Errorf("expected empty queue, got depth %d", depth)
	}
}

func TestWorker_RetryableErrorRequeues(t *testing.T) {
	ctx := context.Background()
	awaiter := &fakeAwaiter{err: &watch.TransportError{
		CommandID: "cmd-1",
		TargetID:  "i-1",
		Retryable: true,
		Err:       &controlplane.APIError{Kind: controlplane.KindTimeout},
	}}
	w, queue, repo := newWorkerFixture(awaiter)

	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-1", TargetID: "i-1", Status: domain.StatusPending})
	w.process(ctx, pendingJob())

	queue.mu.Lock()
	if len(queue.jobs) != 1 || queue.jobs[0].Requeues != 1 {
		t.Fatalf("expected job requeued once, got %+v", queue.jobs)
	}
	queue.mu.Unlock()

	inv, _ := repo.Get(ctx, "cmd-1", "i-1")
	if inv.Requeues != 1 {
		t.Errorf("expected requeue recorded, got %d", inv.Requeues)
	}
	if inv.Status != domain.StatusPending {
		t.Errorf("status should stay Pending while requeued, got %s", inv.Status)
	}
}

func TestWorker_RequeueBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	awaiter := &fakeAwaiter{err: &watch.PollTimeoutError{
		CommandID: "cmd-1",
		TargetID:  "i-1",
		Desired:   domain.StatusSuccess,
	}}
	w, queue, repo := newWorkerFixture(awaiter)

	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-1", TargetID: "i-1", Status: domain.StatusPending})

	job := pendingJob()
	job.Requeues = w.cfg.MaxRequeues
	w.process(ctx, job)

	if depth, _ := queue.QueueDepth(ctx); depth != 0 {
		t.Errorf("exhausted job must not be requeued, got depth %d", depth)
	}

	inv, _ := repo.Get(ctx, "cmd-1", "i-1")
	if inv.Status != domain.StatusTimedOut {
		t.Errorf("expected TimedOut, got %s", inv.Status)
	}
}

func TestWorker_NonRetryableErrorFailsImmediately(t *testing.T) {
	ctx := context.Background()
	awaiter := &fakeAwaiter{err: &watch.OperationFailedError{CommandID: "cmd-1", TargetID: "i-1"}}
	w, queue, repo := newWorkerFixture(awaiter)

	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-1", TargetID: "i-1", Status: domain.StatusPending})
	w.process(ctx, pendingJob())

	if depth, _ := queue.QueueDepth(ctx); depth != 0 {
		t.Errorf("non-retryable failure must not be requeued, got depth %d", depth)
	}

	inv, _ := repo.Get(ctx, "cmd-1", "i-1")
	if inv.Status != domain.StatusFailed {
		t.Errorf("expected Failed, got %s", inv.Status)
	}
	if inv.LastError == "" {
		t.Error("expected last error to be recorded")
	}
}

func TestWorker_ShutdownRequeuesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	awaiter := &fakeAwaiter{err: context.Canceled}
	w, queue, repo := newWorkerFixture(awaiter)

	_ = repo.Save(context.Background(), &domain.Invocation{CommandID: "cmd-1", TargetID: "i-1", Status: domain.StatusPending})
	cancel()
	w.process(ctx, pendingJob())

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.jobs) != 1 || queue.jobs[0].Requeues != 0 {
		t.Fatalf("expected job returned to queue untouched, got %+v", queue.jobs)
	}
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	awaiter := &fakeAwaiter{status: domain.StatusSuccess}
	w, _, _ := newWorkerFixture(awaiter)
	w.cfg.EmptySleep = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

type fakeLocker struct {
	held    map[string]bool
	unlocks int
}

func (l *fakeLocker) Lock(ctx context.Context, commandID, targetID string, ttl time.Duration) (bool, error) {
	key := commandID + "/" + targetID
	if l.held[key] {
		return false, nil
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, commandID, targetID string) error {
	delete(l.held, commandID+"/"+targetID)
	l.unlocks++
	return nil
}

func TestWorker_SkipsLockedInvocation(t *testing.T) {
	ctx := context.Background()
	awaiter := &fakeAwaiter{status: domain.StatusSuccess}
	w, queue, repo := newWorkerFixture(awaiter)
	locker := &fakeLocker{held: map[string]bool{"cmd-1/i-1": true}}
	w.SetLocker(locker)

	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-1", TargetID: "i-1", Status: domain.StatusPending})
	w.process(ctx, pendingJob())

	if awaiter.calls != 0 {
		t.Errorf("locked invocation must not be watched, got %d polls", awaiter.calls)
	}
	if depth, _ := queue.QueueDepth(ctx); depth != 0 {
		t.Errorf("skipped job must not be requeued, got depth %d", depth)
	}
}

func TestWorker_ReleasesLockAfterWatch(t *testing.T) {
	ctx := context.Background()
	awaiter := &fakeAwaiter{status: domain.StatusSuccess}
	w, _, repo := newWorkerFixture(awaiter)
	locker := &fakeLocker{}
	w.SetLocker(locker)

	_ = repo.Save(ctx, &domain.Invocation{CommandID: "cmd-1", TargetID: "i-1", Status: domain.StatusPending})
	w.process(ctx, pendingJob())

	if awaiter.calls != 1 {
		t.Errorf("expected one watch, got %d", awaiter.calls)
	}
	if locker.unlocks != 1 || len(locker.held) != 0 {
		t.Errorf("lock should be released after watch, unlocks=%d held=%v", locker.unlocks, locker.held)
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()
	queue := &fakeQueue{}
	repo := memory.NewInvocationRepo(memory.NewMemoryStorage())
	sender := &fakeSender{commandID: "cmd-42"}
	d := NewDispatcher(sender, repo, queue)

	commandID, err := d.Dispatch(ctx, "systemctl restart app", "rolling restart", []string{"i-1", "i-2"}, Options{
		Timeout:  time.Minute,
		Interval: time.Second,
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if commandID != "cmd-42" {
		t.Errorf("command id = %s, want cmd-42", commandID)
	}

	if depth, _ := queue.QueueDepth(ctx); depth != 2 {
		t.Errorf("expected 2 watch jobs, got %d", depth)
	}
	queue.mu.Lock()
	if queue.jobs[0].Desired != string(domain.StatusSuccess) {
		t.Errorf("default desired should be Success, got %s", queue.jobs[0].Desired)
	}
	queue.mu.Unlock()

	inv, _ := repo.Get(ctx, "cmd-42", "i-2")
	if inv == nil || inv.Status != domain.StatusPending {
		t.Errorf("expected pending invocation for i-2, got %+v", inv)
	}
}

func TestDispatcher_NoTargets(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, memory.NewInvocationRepo(memory.NewMemoryStorage()), &fakeQueue{})
	if _, err := d.Dispatch(context.Background(), "true", "", nil, Options{}); err == nil {
		t.Fatal("expected error for empty target list")
	}
}

type fakeSender struct {
	commandID string
	err       error
}

func (s *fakeSender) SendCommand(ctx context.Context, req controlplane.SendCommandRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.commandID == "" {
		return "", errors.New("no command id configured")
	}
	return s.commandID, nil
}

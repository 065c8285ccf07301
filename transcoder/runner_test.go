package transcoder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/omzoxima/adminpannelbackend/apperrors"
)

// fakeService scripts the sequence of statuses a job reports across polls.
type fakeService struct {
	mu        sync.Mutex
	statuses  []JobStatus
	polls     int
	createErr error
	pollErr   error
	lastSpec  JobSpec
}

func (f *fakeService) CreateJob(ctx context.Context, spec JobSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.lastSpec = spec
	return "projects/p/locations/l/jobs/test-job", nil
}

func (f *fakeService) GetJob(ctx context.Context, handle string) (JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil && f.polls == 1 {
		return JobStatus{}, f.pollErr
	}
	idx := f.polls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func newTestRunner(svc Service) *Runner {
	return &Runner{
		Service:      svc,
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	r := newTestRunner(&fakeService{})

	cases := []string{"", "bucket/in.mp4", "http://bucket/in.mp4", "gs://x"}
	for _, input := range cases {
		_, err := r.Submit(context.Background(), input, "gs://bucket/out/", ProfileSD)
		if err == nil {
			t.Errorf("Expected rejection of input %q", input)
			continue
		}
		if apperrors.KindOf(err) != apperrors.KindBadRequest {
			t.Errorf("Input %q: expected bad_request, got %s", input, apperrors.KindOf(err))
		}
	}
}

func TestSubmitReturnsHandle(t *testing.T) {
	svc := &fakeService{}
	r := newTestRunner(svc)

	h, err := r.Submit(context.Background(), "gs://bucket/in.mp4", "gs://bucket/out/", ProfileHD)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if h.Name != "projects/p/locations/l/jobs/test-job" {
		t.Errorf("Unexpected handle name %s", h.Name)
	}
	if svc.lastSpec.Profile != ProfileHD {
		t.Errorf("Profile not forwarded, got %s", svc.lastSpec.Profile)
	}
	if h.SubmittedAt.IsZero() {
		t.Error("SubmittedAt should be stamped")
	}
}

func TestSubmitUpstreamError(t *testing.T) {
	r := newTestRunner(&fakeService{createErr: fmt.Errorf("quota exhausted")})

	_, err := r.Submit(context.Background(), "gs://bucket/in.mp4", "gs://bucket/out/", ProfileSD)
	if err == nil {
		t.Fatal("Expected submission error to propagate")
	}
	if apperrors.KindOf(err) != apperrors.KindUpstreamFailure {
		t.Errorf("Expected upstream_failure, got %s", apperrors.KindOf(err))
	}
}

func TestAwaitCompletionSucceeds(t *testing.T) {
	svc := &fakeService{statuses: []JobStatus{
		{State: StatePending},
		{State: StateRunning},
		{State: StateSucceeded},
	}}
	r := newTestRunner(svc)

	res, err := r.AwaitCompletion(context.Background(), &JobHandle{Name: "j"})
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}
	if res.State != ResultSucceeded {
		t.Errorf("Expected succeeded, got %s", res.State)
	}
	if svc.polls != 3 {
		t.Errorf("Expected 3 polls, got %d", svc.polls)
	}
}

func TestAwaitCompletionFailureCarriesMessage(t *testing.T) {
	svc := &fakeService{statuses: []JobStatus{
		{State: StateRunning},
		{State: StateFailed, Message: "unsupported pixel format"},
	}}
	r := newTestRunner(svc)

	res, err := r.AwaitCompletion(context.Background(), &JobHandle{Name: "j"})
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}
	if res.State != ResultFailed {
		t.Errorf("Expected failed, got %s", res.State)
	}
	if res.Message != "unsupported pixel format" {
		t.Errorf("Expected service error text, got %q", res.Message)
	}
}

func TestAwaitCompletionTimesOut(t *testing.T) {
	svc := &fakeService{statuses: []JobStatus{{State: StateRunning}}}
	r := &Runner{Service: svc, PollInterval: time.Millisecond, Timeout: 20 * time.Millisecond}

	res, err := r.AwaitCompletion(context.Background(), &JobHandle{Name: "j"})
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}
	if res.State != ResultTimedOut {
		t.Errorf("Expected timed_out, got %s", res.State)
	}
	// A job that never reports terminal must have been polled more than once
	if svc.polls < 2 {
		t.Errorf("Expected repeated polling, got %d polls", svc.polls)
	}
}

func TestAwaitCompletionSurvivesPollError(t *testing.T) {
	svc := &fakeService{
		pollErr:  fmt.Errorf("connection reset"),
		statuses: []JobStatus{{State: StateRunning}, {State: StateSucceeded}},
	}
	r := newTestRunner(svc)

	res, err := r.AwaitCompletion(context.Background(), &JobHandle{Name: "j"})
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}
	if res.State != ResultSucceeded {
		t.Errorf("Expected success after transient poll error, got %s", res.State)
	}
}

func TestAwaitCompletionHonorsContext(t *testing.T) {
	svc := &fakeService{statuses: []JobStatus{{State: StateRunning}}}
	r := &Runner{Service: svc, PollInterval: 10 * time.Millisecond, Timeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.AwaitCompletion(ctx, &JobHandle{Name: "j"}); err == nil {
		t.Error("Expected context cancellation to surface")
	}
}

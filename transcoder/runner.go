package transcoder

import (
	"context"
	"strings"
	"time"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/logger"
)

// ResultState is the terminal outcome of awaiting a job.
type ResultState int

const (
	ResultSucceeded ResultState = iota
	ResultFailed
	ResultTimedOut
)

func (s ResultState) String() string {
	switch s {
	case ResultSucceeded:
		return "succeeded"
	case ResultFailed:
		return "failed"
	case ResultTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is the outcome of one awaited transcode job.
type Result struct {
	State   ResultState
	Message string
}

// JobHandle identifies a submitted job. It is owned exclusively by the
// runner that created it until the job reaches a terminal state.
type JobHandle struct {
	Name            string
	InputURI        string
	OutputFolderURI string
	SubmittedAt     time.Time
	LastPolledAt    time.Time
}

// Runner drives the external transcoding service through the
// submit / poll / timeout lifecycle. It never mutates catalog state; its
// only side effects are the external job and that job's output artifacts.
type Runner struct {
	Service      Service
	PollInterval time.Duration // defaults to 5s
	Timeout      time.Duration // wall-clock ceiling per job, defaults to 10m
	InputScheme  string        // required source URI scheme, defaults to gs://
}

// Submit validates the source reference, creates the external job and
// returns immediately with its handle.
func (r *Runner) Submit(ctx context.Context, inputURI, outputFolderURI string, profile QualityProfile) (*JobHandle, error) {
	scheme := r.InputScheme
	if scheme == "" {
		scheme = "gs://"
	}
	if !strings.HasPrefix(inputURI, scheme) || len(inputURI) <= len(scheme)+4 {
		return nil, apperrors.Newf(apperrors.KindBadRequest, "source path must be a %s URI", scheme)
	}

	name, err := r.Service.CreateJob(ctx, JobSpec{
		InputURI:        inputURI,
		OutputFolderURI: outputFolderURI,
		Profile:         profile,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamFailure, "failed to submit transcode job", err)
	}

	logger.Infof("Submitted transcode job %s for %s", name, inputURI)
	return &JobHandle{
		Name:            name,
		InputURI:        inputURI,
		OutputFolderURI: outputFolderURI,
		SubmittedAt:     time.Now(),
	}, nil
}

// AwaitCompletion polls the external service until the job reaches a
// terminal state or the wall-clock ceiling elapses. Each iteration sleeps
// the poll interval before re-checking; a still-running job is never treated
// as done. Transport errors from a poll are logged and the loop carries on,
// waiting for the next tick. The returned error is non-nil only when ctx is
// cancelled before a terminal state is observed.
func (r *Runner) AwaitCompletion(ctx context.Context, handle *JobHandle) (Result, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			logger.Warnf("Transcode job %s exceeded its %v ceiling", handle.Name, timeout)
			return Result{State: ResultTimedOut, Message: "transcode job did not finish in time"}, nil
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(interval):
		}

		status, err := r.Service.GetJob(ctx, handle.Name)
		handle.LastPolledAt = time.Now()
		if err != nil {
			logger.Warnf("Poll of transcode job %s failed: %v", handle.Name, err)
			continue
		}

		switch status.State {
		case StateSucceeded:
			logger.Infof("Transcode job %s succeeded", handle.Name)
			return Result{State: ResultSucceeded}, nil
		case StateFailed:
			logger.Errorf("Transcode job %s failed: %s", handle.Name, status.Message)
			return Result{State: ResultFailed, Message: status.Message}, nil
		default:
			// Pending or running: wait for the next tick
		}
	}
}

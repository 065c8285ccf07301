package transcoder

import "context"

// JobState is the state an external transcode job reports while it runs.
type JobState int

const (
	StatePending JobState = iota
	StateRunning
	StateSucceeded
	StateFailed
)

// QualityProfile selects the encode ladder for a job.
type QualityProfile string

const (
	// ProfileSD produces a single SD rendition.
	ProfileSD QualityProfile = "sd"
	// ProfileHD produces SD plus an HD rendition.
	ProfileHD QualityProfile = "hd"
)

// JobSpec describes one transcode job: where the source lives, where the
// segmented output and manifest go, and which ladder to encode.
type JobSpec struct {
	InputURI        string
	OutputFolderURI string
	Profile         QualityProfile
}

// JobStatus is a point-in-time view of an external job. Message carries the
// service-reported error text for failed jobs.
type JobStatus struct {
	State   JobState
	Message string
}

// Service is the narrow contract over the external batch transcoding
// service: create a job, ask how it is doing. The codec pipeline behind it
// is a black box.
type Service interface {
	CreateJob(ctx context.Context, spec JobSpec) (string, error)
	GetJob(ctx context.Context, handle string) (JobStatus, error)
}

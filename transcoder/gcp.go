package transcoder

import (
	"context"
	"fmt"

	transcoderapi "google.golang.org/api/transcoder/v1"
)

// GCPService adapts the Google Transcoder API to the Service contract.
type GCPService struct {
	svc    *transcoderapi.Service
	parent string
}

// NewGCPService creates an adapter submitting jobs under the given project
// and location.
func NewGCPService(ctx context.Context, project, location string) (*GCPService, error) {
	svc, err := transcoderapi.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcoder client: %w", err)
	}
	return &GCPService{
		svc:    svc,
		parent: fmt.Sprintf("projects/%s/locations/%s", project, location),
	}, nil
}

// CreateJob submits a job encoding the requested ladder into segmented TS
// streams muxed under a single HLS manifest named playlist.m3u8.
func (g *GCPService) CreateJob(ctx context.Context, spec JobSpec) (string, error) {
	job := &transcoderapi.Job{
		InputUri:  spec.InputURI,
		OutputUri: spec.OutputFolderURI,
		Config:    jobConfig(spec.Profile),
	}
	created, err := g.svc.Projects.Locations.Jobs.Create(g.parent, job).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("transcoder job creation failed: %w", err)
	}
	return created.Name, nil
}

// GetJob reports the current state of a job.
func (g *GCPService) GetJob(ctx context.Context, handle string) (JobStatus, error) {
	job, err := g.svc.Projects.Locations.Jobs.Get(handle).Context(ctx).Do()
	if err != nil {
		return JobStatus{}, fmt.Errorf("transcoder job lookup failed: %w", err)
	}

	switch job.State {
	case "SUCCEEDED":
		return JobStatus{State: StateSucceeded}, nil
	case "FAILED":
		msg := "transcode failed"
		if job.Error != nil && job.Error.Message != "" {
			msg = job.Error.Message
		}
		return JobStatus{State: StateFailed, Message: msg}, nil
	case "RUNNING":
		return JobStatus{State: StateRunning}, nil
	default:
		return JobStatus{State: StatePending}, nil
	}
}

// jobConfig builds the encode ladder for a profile: an SD H.264 stream
// always, an HD stream for the HD profile, and one AAC audio stream, each
// muxed into 10s TS segments behind a single HLS manifest.
func jobConfig(profile QualityProfile) *transcoderapi.JobConfig {
	streams := []*transcoderapi.ElementaryStream{
		{
			Key: "video-sd",
			VideoStream: &transcoderapi.VideoStream{
				H264: &transcoderapi.H264CodecSettings{
					WidthPixels:  854,
					HeightPixels: 480,
					BitrateBps:   1500000,
					FrameRate:    30,
				},
			},
		},
		{
			Key: "audio",
			AudioStream: &transcoderapi.AudioStream{
				Codec:      "aac",
				BitrateBps: 128000,
			},
		},
	}
	muxKeys := []string{"sd"}
	muxes := []*transcoderapi.MuxStream{
		{
			Key:               "sd",
			Container:         "ts",
			ElementaryStreams: []string{"video-sd", "audio"},
			SegmentSettings:   &transcoderapi.SegmentSettings{SegmentDuration: "10s"},
		},
	}

	if profile == ProfileHD {
		streams = append(streams, &transcoderapi.ElementaryStream{
			Key: "video-hd",
			VideoStream: &transcoderapi.VideoStream{
				H264: &transcoderapi.H264CodecSettings{
					WidthPixels:  1280,
					HeightPixels: 720,
					BitrateBps:   3000000,
					FrameRate:    30,
				},
			},
		})
		muxes = append(muxes, &transcoderapi.MuxStream{
			Key:               "hd",
			Container:         "ts",
			ElementaryStreams: []string{"video-hd", "audio"},
			SegmentSettings:   &transcoderapi.SegmentSettings{SegmentDuration: "10s"},
		})
		muxKeys = append(muxKeys, "hd")
	}

	return &transcoderapi.JobConfig{
		ElementaryStreams: streams,
		MuxStreams:        muxes,
		Manifests: []*transcoderapi.Manifest{
			{
				FileName:   "playlist.m3u8",
				Type:       "HLS",
				MuxStreams: muxKeys,
			},
		},
	}
}

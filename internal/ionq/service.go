package ionq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/sampler"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultJobTimeout   = 30 * time.Minute
)

// ResultCache stores output histograms of completed jobs keyed by job ID.
type ResultCache interface {
	Get(ctx context.Context, jobID string) (map[string]float64, bool, error)
	Put(ctx context.Context, jobID string, histogram map[string]float64) error
}

// Service creates jobs on the remote API and hands out job handles that
// block until results are available.
type Service struct {
	client        *Client
	defaultTarget string
	pollInterval  time.Duration
	jobTimeout    time.Duration
	cache         ResultCache
	logger        *zap.Logger
}

var (
	_ domain.JobService = (*Service)(nil)
	_ domain.JobResumer = (*Service)(nil)
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultTarget sets the target used when CreateJob gets an empty one.
func WithDefaultTarget(target string) ServiceOption {
	return func(s *Service) { s.defaultTarget = target }
}

// WithPollInterval sets how often job status is polled.
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *Service) { s.pollInterval = d }
}

// WithJobTimeout bounds how long Results waits for a job.
func WithJobTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.jobTimeout = d }
}

// WithResultCache caches completed job histograms.
func WithResultCache(cache ResultCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service on top of client.
func NewService(client *Client, opts ...ServiceOption) *Service {
	s := &Service{
		client:       client,
		pollInterval: defaultPollInterval,
		jobTimeout:   defaultJobTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultTarget returns the configured default target.
func (s *Service) DefaultTarget() string {
	return s.defaultTarget
}

// CreateJob serializes circuit and submits it for repetitions shots on
// target, falling back to the default target when target is empty.
func (s *Service) CreateJob(ctx context.Context, circuit *domain.Circuit, repetitions int, target string) (domain.RemoteJob, error) {
	if target == "" {
		target = s.defaultTarget
	}
	if target == "" {
		return nil, ErrNoTarget
	}

	input, keys, err := SerializeCircuit(circuit)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{shotsMetaKey: strconv.Itoa(repetitions)}
	encodeMeasurements(keys, meta)

	resp, err := s.client.CreateJob(ctx, &JobRequest{
		Target:   target,
		Shots:    repetitions,
		Input:    input,
		Metadata: meta,
	})
	if err != nil {
		return nil, err
	}

	// The create response only carries id and status.
	if resp.Target == "" {
		resp.Target = target
	}
	if resp.Qubits == 0 {
		resp.Qubits = circuit.Qubits
	}
	if resp.Metadata == nil {
		resp.Metadata = meta
	}

	s.logger.Debug("Created remote job",
		zap.String("job_id", resp.ID),
		zap.String("target", target),
		zap.Int("shots", repetitions),
	)
	return newJob(s, resp), nil
}

// GetJob returns a handle for an existing job.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	resp, err := s.client.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return newJob(s, resp), nil
}

// ResumeJob re-attaches to a job created earlier, for example by a worker
// that was stopped mid-sweep.
func (s *Service) ResumeJob(ctx context.Context, id string) (domain.RemoteJob, error) {
	job, err := s.GetJob(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Sampler returns a sampler that runs sweeps through this service.
func (s *Service) Sampler(opts ...sampler.Option) *sampler.Sampler {
	return sampler.New(s, append([]sampler.Option{sampler.WithLogger(s.logger)}, opts...)...)
}

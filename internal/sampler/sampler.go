// Package sampler runs parameter sweeps against a remote job service and
// returns canonical results.
package sampler

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/metrics"
)

// Sampler submits one job per sweep point and converts the results.
// Its fields are set at construction and never mutated.
type Sampler struct {
	service domain.JobService
	target  string
	seed    seedSource
	logger  *zap.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithTarget selects the execution target. Empty uses the service default.
func WithTarget(target string) Option {
	return func(s *Sampler) { s.target = target }
}

// WithSeed makes simulator results reproducible: every conversion starts
// from a fresh source seeded with seed.
func WithSeed(seed int64) Option {
	return func(s *Sampler) { s.seed = fixedSeed(seed) }
}

// WithRand draws simulator samples from r. r is shared across calls and is
// not safe for concurrent use.
func WithRand(r *rand.Rand) Option {
	return func(s *Sampler) {
		if r == nil {
			s.seed = nil
			return
		}
		s.seed = sharedRand{r: r}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sampler) { s.logger = logger }
}

// New creates a Sampler backed by service.
func New(service domain.JobService, opts ...Option) *Sampler {
	s := &Sampler{
		service: service,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Target returns the configured target, empty for the service default.
func (s *Sampler) Target() string {
	return s.target
}

// RunSweep resolves program at every point of params, creates one job per
// point, then waits for each job in order. Results are returned in sweep
// order. Any service error is returned as is, with no partial results.
func (s *Sampler) RunSweep(ctx context.Context, program *domain.Circuit, params domain.Sweep, repetitions int) ([]*domain.Result, error) {
	resolvers := domain.ToResolvers(params)

	jobs := make([]domain.RemoteJob, 0, len(resolvers))
	for _, resolver := range resolvers {
		job, err := s.service.CreateJob(ctx, domain.ResolveParameters(program, resolver), repetitions, s.target)
		if err != nil {
			return nil, err
		}
		metrics.JobsCreated.WithLabelValues(targetLabel(s.target)).Inc()
		s.logger.Debug("Created sweep job",
			zap.String("job_id", job.ID()),
			zap.String("target", s.target),
			zap.Int("repetitions", repetitions),
		)
		jobs = append(jobs, job)
	}

	jobResults := make([]domain.JobResult, 0, len(jobs))
	for _, job := range jobs {
		result, err := job.Results(ctx)
		if err != nil {
			return nil, err
		}
		jobResults = append(jobResults, result)
	}

	results := make([]*domain.Result, 0, len(jobResults))
	for i, jobResult := range jobResults {
		var (
			result *domain.Result
			err    error
		)
		switch r := jobResult.(type) {
		case *domain.QPUResult:
			result, err = r.ToResult(resolvers[i])
			metrics.ResultsConverted.WithLabelValues("qpu").Inc()
		case *domain.SimulatorResult:
			result, err = r.ToResult(resolvers[i], s.randomSource())
			metrics.ResultsConverted.WithLabelValues("simulator").Inc()
		default:
			return nil, fmt.Errorf("sampler: unsupported job result %T", jobResult)
		}
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Run samples program at a single resolver.
func (s *Sampler) Run(ctx context.Context, program *domain.Circuit, resolver domain.ParamResolver, repetitions int) (*domain.Result, error) {
	results, err := s.RunSweep(ctx, program, domain.ListSweep{resolver}, repetitions)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// SampleRow is one repetition at one sweep point, with each measurement
// key's bits read as a big-endian integer.
type SampleRow struct {
	Params domain.ParamResolver `json:"params"`
	Values map[string]int       `json:"values"`
}

// Sample runs the sweep and flattens the results into one row per
// repetition, sweep point by sweep point.
func (s *Sampler) Sample(ctx context.Context, program *domain.Circuit, params domain.Sweep, repetitions int) ([]SampleRow, error) {
	results, err := s.RunSweep(ctx, program, params, repetitions)
	if err != nil {
		return nil, err
	}

	var rows []SampleRow
	for _, result := range results {
		for i := 0; i < result.Repetitions(); i++ {
			row := SampleRow{Params: result.Params, Values: make(map[string]int, len(result.Measurements))}
			for key, records := range result.Measurements {
				if i < len(records) {
					row.Values[key] = domain.BitsToInt(records[i])
				}
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *Sampler) randomSource() domain.RandomSource {
	if s.seed == nil {
		return nil
	}
	return s.seed.source()
}

func targetLabel(target string) string {
	if target == "" {
		return "default"
	}
	return target
}

type seedSource interface {
	source() domain.RandomSource
}

type fixedSeed int64

func (f fixedSeed) source() domain.RandomSource {
	return rand.New(rand.NewSource(int64(f)))
}

type sharedRand struct {
	r *rand.Rand
}

func (s sharedRand) source() domain.RandomSource {
	return s.r
}

package domain

import (
	"context"
	"math/rand"
	"sort"
)

// Result is the canonical sampling output for one sweep point: for every
// measurement key, one row per repetition with one bit per measured qubit.
type Result struct {
	Params       ParamResolver      `json:"params"`
	Measurements map[string][][]int `json:"measurements"`
}

// Repetitions returns the number of rows recorded per key.
func (r *Result) Repetitions() int {
	n := 0
	for _, rows := range r.Measurements {
		n = max(n, len(rows))
	}
	return n
}

// Histogram counts the outcomes recorded under key. Each row is read as a
// big-endian integer, first target most significant.
func (r *Result) Histogram(key string) map[int]int {
	hist := make(map[int]int)
	for _, row := range r.Measurements[key] {
		hist[BitsToInt(row)]++
	}
	return hist
}

// BitsToInt reads bits as a big-endian integer.
func BitsToInt(bits []int) int {
	v := 0
	for _, b := range bits {
		v = v<<1 | (b & 1)
	}
	return v
}

// JobService creates remote execution jobs for fully resolved circuits.
type JobService interface {
	CreateJob(ctx context.Context, circuit *Circuit, repetitions int, target string) (RemoteJob, error)
}

// JobResumer re-attaches to a job created earlier. It returns ErrJobNotFound
// when the remote side no longer knows the job.
type JobResumer interface {
	ResumeJob(ctx context.Context, id string) (RemoteJob, error)
}

// RemoteJob is a submitted job. Results blocks until the job completes.
type RemoteJob interface {
	ID() string
	Results(ctx context.Context) (JobResult, error)
}

// JobResult is the raw result of a remote job: either a *QPUResult or a
// *SimulatorResult.
type JobResult interface {
	isJobResult()
}

// RandomSource supplies uniform samples in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type ambientRand struct{}

func (ambientRand) Float64() float64 { return rand.Float64() }

// QPUResult holds measurement counts from a physical device. State indices
// are little-endian: qubit q is bit q of the state.
type QPUResult struct {
	Counts          map[int]int      `json:"counts"`
	NumQubits       int              `json:"num_qubits"`
	MeasurementKeys []MeasurementKey `json:"measurement_keys"`
}

func (*QPUResult) isJobResult() {}

// Repetitions is the total number of shots recorded.
func (q *QPUResult) Repetitions() int {
	n := 0
	for _, c := range q.Counts {
		n += c
	}
	return n
}

// ToResult expands the counts into per-repetition rows, in ascending state
// order. No randomness is involved.
func (q *QPUResult) ToResult(params ParamResolver) (*Result, error) {
	if len(q.MeasurementKeys) == 0 {
		return nil, ErrNoMeasurements
	}

	states := sortedStates(q.Counts)
	total := q.Repetitions()
	measurements := make(map[string][][]int, len(q.MeasurementKeys))
	for _, mk := range q.MeasurementKeys {
		rows := make([][]int, 0, total)
		for _, state := range states {
			for i := 0; i < q.Counts[state]; i++ {
				rows = append(rows, stateBits(state, mk.Targets))
			}
		}
		measurements[mk.Key] = rows
	}

	return &Result{Params: params, Measurements: measurements}, nil
}

// SimulatorResult holds an output distribution from a simulator. Rows are
// reconstructed by sampling Repetitions times from Probabilities.
type SimulatorResult struct {
	Probabilities   map[int]float64  `json:"probabilities"`
	NumQubits       int              `json:"num_qubits"`
	MeasurementKeys []MeasurementKey `json:"measurement_keys"`
	Repetitions     int              `json:"repetitions"`
}

func (*SimulatorResult) isJobResult() {}

// ToResult samples the distribution with rng. A nil rng uses the package
// level source. Equal seeds yield equal results.
func (s *SimulatorResult) ToResult(params ParamResolver, rng RandomSource) (*Result, error) {
	if len(s.MeasurementKeys) == 0 {
		return nil, ErrNoMeasurements
	}
	if rng == nil {
		rng = ambientRand{}
	}

	states := make([]int, 0, len(s.Probabilities))
	cumulative := make([]float64, 0, len(s.Probabilities))
	total := 0.0
	for _, state := range sortedStates(s.Probabilities) {
		p := s.Probabilities[state]
		if p <= 0 {
			continue
		}
		total += p
		states = append(states, state)
		cumulative = append(cumulative, total)
	}
	if total <= 0 {
		return nil, ErrEmptyDistribution
	}

	samples := make([]int, s.Repetitions)
	for i := range samples {
		u := rng.Float64() * total
		idx := sort.Search(len(cumulative), func(j int) bool { return cumulative[j] > u })
		if idx == len(cumulative) {
			idx--
		}
		samples[i] = states[idx]
	}

	measurements := make(map[string][][]int, len(s.MeasurementKeys))
	for _, mk := range s.MeasurementKeys {
		rows := make([][]int, len(samples))
		for i, state := range samples {
			rows[i] = stateBits(state, mk.Targets)
		}
		measurements[mk.Key] = rows
	}

	return &Result{Params: params, Measurements: measurements}, nil
}

func stateBits(state int, targets []int) []int {
	bits := make([]int, len(targets))
	for i, q := range targets {
		bits[i] = (state >> q) & 1
	}
	return bits
}

func sortedStates[V int | float64](m map[int]V) []int {
	states := make([]int, 0, len(m))
	for s := range m {
		states = append(states, s)
	}
	sort.Ints(states)
	return states
}

package ionq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/sampler"
)

// fakeAPI is an in-memory job API. Jobs report "running" for pollsBeforeDone
// status checks and then move to finalStatus.
type fakeAPI struct {
	mu sync.Mutex

	histogram       map[string]float64
	finalStatus     JobStatus
	pollsBeforeDone int
	failure         *JobFailure

	jobs          map[string]*JobRequest
	polls         map[string]int
	resultFetches int
	created       []string
}

func newFakeAPI(hist map[string]float64) *fakeAPI {
	return &fakeAPI{
		histogram:   hist,
		finalStatus: JobStatusCompleted,
		jobs:        map[string]*JobRequest{},
		polls:       map[string]int{},
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/jobs")

	switch {
	case r.Method == http.MethodPost && path == "":
		var req JobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id := "job-" + string(rune('a'+len(f.created)))
		f.jobs[id] = &req
		f.created = append(f.created, id)
		_ = json.NewEncoder(w).Encode(JobResponse{ID: id, Status: JobStatusSubmitted})

	case r.Method == http.MethodGet && strings.HasSuffix(path, "/results"):
		f.resultFetches++
		_ = json.NewEncoder(w).Encode(f.histogram)

	case r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/")
		req, ok := f.jobs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"NotFoundError","message":"job not found"}}`))
			return
		}
		f.polls[id]++
		status := JobStatusRunning
		var failure *JobFailure
		if f.polls[id] > f.pollsBeforeDone {
			status = f.finalStatus
			if status == JobStatusFailed {
				failure = f.failure
			}
		}
		_ = json.NewEncoder(w).Encode(JobResponse{
			ID:       id,
			Status:   status,
			Target:   req.Target,
			Qubits:   req.Input.Qubits,
			Metadata: req.Metadata,
			Failure:  failure,
		})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestService(t *testing.T, api *fakeAPI, opts ...ServiceOption) *Service {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, MaxRetry: time.Second})
	require.NoError(t, err)

	opts = append([]ServiceOption{WithPollInterval(5 * time.Millisecond), WithJobTimeout(2 * time.Second)}, opts...)
	return NewService(client, opts...)
}

func bellCircuit() *domain.Circuit {
	return &domain.Circuit{
		Qubits: 2,
		Operations: []domain.Operation{
			{Gate: domain.GateH, Targets: []int{0}},
			{Gate: domain.GateCNOT, Controls: []int{0}, Targets: []int{1}},
			{Gate: domain.GateMeasure, Targets: []int{0, 1}, Key: "m"},
		},
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]map[string]float64
	puts    int
}

func (c *memoryCache) Get(_ context.Context, jobID string) (map[string]float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.entries[jobID]
	return h, ok, nil
}

func (c *memoryCache) Put(_ context.Context, jobID string, h map[string]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]map[string]float64{}
	}
	c.entries[jobID] = h
	c.puts++
	return nil
}

func TestService_CreateJob_UsesDefaultTarget(t *testing.T) {
	api := newFakeAPI(map[string]float64{"0": 1})
	svc := newTestService(t, api, WithDefaultTarget("simulator"))

	job, err := svc.CreateJob(context.Background(), bellCircuit(), 100, "")
	require.NoError(t, err)
	assert.Equal(t, "job-a", job.ID())

	req := api.jobs["job-a"]
	require.NotNil(t, req)
	assert.Equal(t, "simulator", req.Target)
	assert.Equal(t, 100, req.Shots)
	assert.Equal(t, "100", req.Metadata[shotsMetaKey])
	assert.Equal(t, "m\x1f0,1", req.Metadata["measurement0"])
	assert.Len(t, req.Input.Circuit, 2)
}

func TestService_CreateJob_NoTarget(t *testing.T) {
	svc := newTestService(t, newFakeAPI(nil))

	_, err := svc.CreateJob(context.Background(), bellCircuit(), 10, "")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestJob_Results_Simulator(t *testing.T) {
	api := newFakeAPI(map[string]float64{"0": 0.5, "3": 0.5})
	api.pollsBeforeDone = 2
	svc := newTestService(t, api)

	job, err := svc.CreateJob(context.Background(), bellCircuit(), 50, "simulator")
	require.NoError(t, err)

	res, err := job.Results(context.Background())
	require.NoError(t, err)

	sim, ok := res.(*domain.SimulatorResult)
	require.True(t, ok, "expected simulator result, got %T", res)
	assert.Equal(t, map[int]float64{0: 0.5, 3: 0.5}, sim.Probabilities)
	assert.Equal(t, 50, sim.Repetitions)
	assert.Equal(t, 2, sim.NumQubits)
	assert.Equal(t, []domain.MeasurementKey{{Key: "m", Targets: []int{0, 1}}}, sim.MeasurementKeys)
	assert.Equal(t, 3, api.polls["job-a"])
}

func TestJob_Results_QPU(t *testing.T) {
	api := newFakeAPI(map[string]float64{"0": 0.25, "3": 0.75})
	svc := newTestService(t, api)

	job, err := svc.CreateJob(context.Background(), bellCircuit(), 8, "qpu.aria-1")
	require.NoError(t, err)

	res, err := job.Results(context.Background())
	require.NoError(t, err)

	qpu, ok := res.(*domain.QPUResult)
	require.True(t, ok, "expected qpu result, got %T", res)
	assert.Equal(t, map[int]int{0: 2, 3: 6}, qpu.Counts)
	assert.Equal(t, 8, qpu.Repetitions())
}

func TestJob_Results_Failed(t *testing.T) {
	api := newFakeAPI(nil)
	api.finalStatus = JobStatusFailed
	api.failure = &JobFailure{Error: "device offline", Code: "InternalError"}
	svc := newTestService(t, api)

	job, err := svc.CreateJob(context.Background(), bellCircuit(), 8, "qpu")
	require.NoError(t, err)

	_, err = job.Results(context.Background())
	var failed *JobFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "job-a", failed.JobID)
	assert.Equal(t, "device offline", failed.Message)
	assert.Equal(t, "InternalError", failed.Code)
}

func TestJob_Results_Canceled(t *testing.T) {
	api := newFakeAPI(nil)
	api.finalStatus = JobStatusCanceled
	svc := newTestService(t, api)

	job, err := svc.CreateJob(context.Background(), bellCircuit(), 8, "simulator")
	require.NoError(t, err)

	_, err = job.Results(context.Background())
	assert.ErrorIs(t, err, ErrJobCanceled)
}

func TestJob_Results_Timeout(t *testing.T) {
	api := newFakeAPI(nil)
	api.pollsBeforeDone = 1 << 30
	svc := newTestService(t, api, WithJobTimeout(30*time.Millisecond))

	job, err := svc.CreateJob(context.Background(), bellCircuit(), 8, "simulator")
	require.NoError(t, err)

	_, err = job.Results(context.Background())
	assert.ErrorIs(t, err, ErrJobTimeout)
}

func TestJob_Results_UsesCache(t *testing.T) {
	api := newFakeAPI(map[string]float64{"0": 1})
	cache := &memoryCache{}
	svc := newTestService(t, api, WithResultCache(cache))

	job, err := svc.CreateJob(context.Background(), bellCircuit(), 4, "simulator")
	require.NoError(t, err)

	_, err = job.Results(context.Background())
	require.NoError(t, err)
	_, err = job.Results(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, api.resultFetches)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, map[string]float64{"0": 1}, cache.entries["job-a"])
}

func TestService_GetJob(t *testing.T) {
	api := newFakeAPI(map[string]float64{"0": 1})
	svc := newTestService(t, api)

	created, err := svc.CreateJob(context.Background(), bellCircuit(), 4, "simulator")
	require.NoError(t, err)

	job, err := svc.GetJob(context.Background(), created.ID())
	require.NoError(t, err)
	assert.Equal(t, "simulator", job.Target())

	_, err = svc.GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ResumeJob_ServesFinishedResultsFromCache(t *testing.T) {
	api := newFakeAPI(map[string]float64{"0": 0.5, "3": 0.5})
	cache := &memoryCache{}
	svc := newTestService(t, api, WithResultCache(cache))

	created, err := svc.CreateJob(context.Background(), bellCircuit(), 4, "simulator")
	require.NoError(t, err)
	_, err = created.Results(context.Background())
	require.NoError(t, err)

	resumed, err := svc.ResumeJob(context.Background(), created.ID())
	require.NoError(t, err)
	assert.Equal(t, created.ID(), resumed.ID())

	result, err := resumed.Results(context.Background())
	require.NoError(t, err)
	sim, ok := result.(*domain.SimulatorResult)
	require.True(t, ok, "expected a simulator result, got %T", result)
	assert.Equal(t, 4, sim.Repetitions)
	assert.Equal(t, []domain.MeasurementKey{{Key: "m", Targets: []int{0, 1}}}, sim.MeasurementKeys)
	assert.Equal(t, 1, api.resultFetches)
}

func TestService_ResumeJob_UnknownJob(t *testing.T) {
	svc := newTestService(t, newFakeAPI(nil))

	_, err := svc.ResumeJob(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestService_Sampler_RunSweep(t *testing.T) {
	api := newFakeAPI(map[string]float64{"3": 1})
	svc := newTestService(t, api)

	c := bellCircuit()
	c.Operations[0] = domain.Operation{Gate: domain.GateRY, Targets: []int{0}, Rotation: domain.Symbol("theta")}

	s := svc.Sampler(sampler.WithTarget("simulator"), sampler.WithSeed(7))
	results, err := s.RunSweep(context.Background(), c, domain.Points{Key: "theta", Values: []float64{0, 1.5}}, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, r := range results {
		assert.Equal(t, domain.ParamResolver{"theta": []float64{0, 1.5}[i]}, r.Params)
		assert.Equal(t, [][]int{{1, 1}, {1, 1}, {1, 1}}, r.Measurements["m"])
	}

	require.Len(t, api.created, 2)
	rot := api.jobs["job-b"].Input.Circuit[0].Rotation
	require.NotNil(t, rot)
	assert.InDelta(t, 1.5, *rot, 1e-12)
}

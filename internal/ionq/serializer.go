package ionq

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Harsh-BH/qsweep/internal/domain"
)

const (
	circuitFormat = "ionq.circuit.v0"

	// Measurement keys are stored in job metadata, chunked because metadata
	// values are limited in length.
	measurementMetaPrefix = "measurement"
	metadataValueLimit    = 400
	shotsMetaKey          = "shots"

	unitSeparator   = "\x1f"
	recordSeparator = "\x1e"
)

// CircuitInput is the job input payload.
type CircuitInput struct {
	Format  string            `json:"format"`
	Qubits  int               `json:"qubits"`
	Circuit []GateInstruction `json:"circuit"`
}

// GateInstruction is one gate in the job input payload.
type GateInstruction struct {
	Gate     string   `json:"gate"`
	Target   *int     `json:"target,omitempty"`
	Targets  []int    `json:"targets,omitempty"`
	Control  *int     `json:"control,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// SerializeCircuit converts a resolved circuit into a job input. Measurement
// operations are not sent as gates; their keys are returned so they can be
// stored in job metadata.
func SerializeCircuit(c *domain.Circuit) (*CircuitInput, []domain.MeasurementKey, error) {
	if c == nil {
		return nil, nil, fmt.Errorf("ionq: nil circuit")
	}
	if params := c.Parameters(); len(params) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnresolvedParameter, strings.Join(params, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	input := &CircuitInput{
		Format:  circuitFormat,
		Qubits:  c.Qubits,
		Circuit: make([]GateInstruction, 0, len(c.Operations)),
	}
	for _, op := range c.Operations {
		switch {
		case op.Gate == domain.GateMeasure:
			continue
		case op.Gate == domain.GateCNOT:
			input.Circuit = append(input.Circuit, GateInstruction{
				Gate:    string(op.Gate),
				Control: intPtr(op.Controls[0]),
				Target:  intPtr(op.Targets[0]),
			})
		case op.Gate == domain.GateSwap:
			input.Circuit = append(input.Circuit, GateInstruction{
				Gate:    string(op.Gate),
				Targets: append([]int(nil), op.Targets...),
			})
		default:
			for _, q := range op.Targets {
				inst := GateInstruction{Gate: string(op.Gate), Target: intPtr(q)}
				if op.Rotation != nil {
					v := op.Rotation.Value
					inst.Rotation = &v
				}
				input.Circuit = append(input.Circuit, inst)
			}
		}
	}

	return input, c.MeasurementKeys(), nil
}

// encodeMeasurements stores measurement keys as "key\x1f0,1\x1ekey2\x1f2",
// split across measurement0, measurement1, ... metadata entries.
func encodeMeasurements(keys []domain.MeasurementKey, meta map[string]string) {
	if len(keys) == 0 {
		return
	}
	records := make([]string, len(keys))
	for i, mk := range keys {
		targets := make([]string, len(mk.Targets))
		for j, q := range mk.Targets {
			targets[j] = strconv.Itoa(q)
		}
		records[i] = mk.Key + unitSeparator + strings.Join(targets, ",")
	}

	encoded := strings.Join(records, recordSeparator)
	for i := 0; len(encoded) > 0; i++ {
		n := min(len(encoded), metadataValueLimit)
		meta[measurementMetaPrefix+strconv.Itoa(i)] = encoded[:n]
		encoded = encoded[n:]
	}
}

func decodeMeasurements(meta map[string]string) ([]domain.MeasurementKey, error) {
	var sb strings.Builder
	for i := 0; ; i++ {
		chunk, ok := meta[measurementMetaPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		sb.WriteString(chunk)
	}
	if sb.Len() == 0 {
		return nil, nil
	}

	var keys []domain.MeasurementKey
	for _, record := range strings.Split(sb.String(), recordSeparator) {
		key, targetList, ok := strings.Cut(record, unitSeparator)
		if !ok || key == "" {
			return nil, fmt.Errorf("ionq: malformed measurement metadata %q", record)
		}
		mk := domain.MeasurementKey{Key: key}
		for _, t := range strings.Split(targetList, ",") {
			q, err := strconv.Atoi(t)
			if err != nil {
				return nil, fmt.Errorf("ionq: malformed measurement target %q: %w", t, err)
			}
			mk.Targets = append(mk.Targets, q)
		}
		keys = append(keys, mk)
	}
	return keys, nil
}

func intPtr(v int) *int {
	return &v
}

package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Gate names a native gate understood by the remote job API.
type Gate string

const (
	GateX       Gate = "x"
	GateY       Gate = "y"
	GateZ       Gate = "z"
	GateH       Gate = "h"
	GateS       Gate = "s"
	GateSi      Gate = "si"
	GateT       Gate = "t"
	GateTi      Gate = "ti"
	GateV       Gate = "v"
	GateVi      Gate = "vi"
	GateRX      Gate = "rx"
	GateRY      Gate = "ry"
	GateRZ      Gate = "rz"
	GateCNOT    Gate = "cnot"
	GateSwap    Gate = "swap"
	GateMeasure Gate = "measure"
)

// IsValid reports whether the gate is supported.
func (g Gate) IsValid() bool {
	switch g {
	case GateX, GateY, GateZ, GateH, GateS, GateSi, GateT, GateTi, GateV, GateVi,
		GateRX, GateRY, GateRZ, GateCNOT, GateSwap, GateMeasure:
		return true
	}
	return false
}

// IsRotation reports whether the gate takes a rotation angle.
func (g Gate) IsRotation() bool {
	return g == GateRX || g == GateRY || g == GateRZ
}

// Param is a gate parameter: either a constant (radians) or a free symbol
// that must be bound by a ParamResolver before submission.
type Param struct {
	Symbol string  `json:"symbol,omitempty"`
	Value  float64 `json:"value"`
}

// Const returns a constant parameter.
func Const(v float64) *Param {
	return &Param{Value: v}
}

// Symbol returns a free parameter named name.
func Symbol(name string) *Param {
	return &Param{Symbol: name}
}

// IsSymbolic reports whether the parameter is still unbound.
func (p *Param) IsSymbolic() bool {
	return p != nil && p.Symbol != ""
}

// Operation is a single gate application. Measurement operations carry a
// key that names the measured targets in results.
type Operation struct {
	Gate     Gate   `json:"gate"`
	Targets  []int  `json:"targets"`
	Controls []int  `json:"controls,omitempty"`
	Rotation *Param `json:"rotation,omitempty"`
	Key      string `json:"key,omitempty"`
}

// Circuit is an ordered list of operations over a fixed number of qubits.
type Circuit struct {
	Qubits     int         `json:"qubits"`
	Operations []Operation `json:"operations"`
}

// MeasurementKey maps a measurement key to the qubits it measured, in order.
type MeasurementKey struct {
	Key     string `json:"key"`
	Targets []int  `json:"targets"`
}

// ResolveParameters returns a copy of c with every symbol bound by r replaced
// by its value. Symbols missing from r are left symbolic.
func ResolveParameters(c *Circuit, r ParamResolver) *Circuit {
	if c == nil {
		return nil
	}
	out := &Circuit{Qubits: c.Qubits}
	if c.Operations != nil {
		out.Operations = make([]Operation, len(c.Operations))
	}
	for i, op := range c.Operations {
		resolved := Operation{
			Gate:     op.Gate,
			Targets:  slices.Clone(op.Targets),
			Controls: slices.Clone(op.Controls),
			Key:      op.Key,
		}
		if op.Rotation != nil {
			p := *op.Rotation
			if v, ok := r.Value(p.Symbol); ok && p.IsSymbolic() {
				p = Param{Value: v}
			}
			resolved.Rotation = &p
		}
		out.Operations[i] = resolved
	}
	return out
}

// IsParameterized reports whether any operation still has a free symbol.
func (c *Circuit) IsParameterized() bool {
	return len(c.Parameters()) > 0
}

// Parameters returns the sorted set of free symbols in the circuit.
func (c *Circuit) Parameters() []string {
	seen := make(map[string]struct{})
	for _, op := range c.Operations {
		if op.Rotation.IsSymbolic() {
			seen[op.Rotation.Symbol] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MeasurementKeys returns the measurement keys in operation order.
func (c *Circuit) MeasurementKeys() []MeasurementKey {
	var keys []MeasurementKey
	for _, op := range c.Operations {
		if op.Gate == GateMeasure {
			keys = append(keys, MeasurementKey{Key: op.Key, Targets: slices.Clone(op.Targets)})
		}
	}
	return keys
}

// reservedKeyChars may not appear in measurement keys: remote job metadata
// uses them as separators.
const reservedKeyChars = "\x1e\x1f,"

// Validate checks qubit indices, gate arity and measurement keys.
func (c *Circuit) Validate() error {
	if c.Qubits <= 0 {
		return fmt.Errorf("%w: qubit count must be positive", ErrInvalidCircuit)
	}
	keys := make(map[string]struct{})
	for i, op := range c.Operations {
		if err := c.validateOperation(op, keys); err != nil {
			return fmt.Errorf("%w: operation %d (%s): %s", ErrInvalidCircuit, i, op.Gate, err)
		}
	}
	return nil
}

func (c *Circuit) validateOperation(op Operation, keys map[string]struct{}) error {
	if !op.Gate.IsValid() {
		return fmt.Errorf("unknown gate")
	}
	if len(op.Targets) == 0 {
		return fmt.Errorf("no targets")
	}

	used := make(map[int]struct{}, len(op.Targets)+len(op.Controls))
	for _, q := range append(slices.Clone(op.Targets), op.Controls...) {
		if q < 0 || q >= c.Qubits {
			return fmt.Errorf("qubit %d out of range [0, %d)", q, c.Qubits)
		}
		if _, dup := used[q]; dup {
			return fmt.Errorf("qubit %d used twice", q)
		}
		used[q] = struct{}{}
	}

	switch {
	case op.Gate.IsRotation() && op.Rotation == nil:
		return fmt.Errorf("missing rotation")
	case !op.Gate.IsRotation() && op.Rotation != nil:
		return fmt.Errorf("unexpected rotation")
	case op.Gate == GateCNOT && (len(op.Controls) != 1 || len(op.Targets) != 1):
		return fmt.Errorf("cnot needs exactly one control and one target")
	case op.Gate == GateSwap && len(op.Targets) != 2:
		return fmt.Errorf("swap needs exactly two targets")
	case op.Gate != GateCNOT && len(op.Controls) > 0:
		return fmt.Errorf("controls are only supported on cnot")
	}

	if op.Gate == GateMeasure {
		if op.Key == "" {
			return fmt.Errorf("measurement key is required")
		}
		if strings.ContainsAny(op.Key, reservedKeyChars) {
			return fmt.Errorf("measurement key %q contains a reserved character", op.Key)
		}
		if _, dup := keys[op.Key]; dup {
			return fmt.Errorf("duplicate measurement key %q", op.Key)
		}
		keys[op.Key] = struct{}{}
	}
	return nil
}

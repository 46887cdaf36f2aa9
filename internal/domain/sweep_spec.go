package domain

import "fmt"

// Sweep specification types accepted on the wire.
const (
	SweepUnit     = "unit"
	SweepPoints   = "points"
	SweepLinspace = "linspace"
	SweepList     = "list"
	SweepProduct  = "product"
	SweepZip      = "zip"
)

// MaxSweepPoints bounds the number of points a submitted sweep may expand to.
const MaxSweepPoints = 100

// SweepSpec is the JSON form of a Sweep.
type SweepSpec struct {
	Type      string          `json:"type"`
	Key       string          `json:"key,omitempty"`
	Values    []float64       `json:"values,omitempty"`
	Start     float64         `json:"start,omitempty"`
	Stop      float64         `json:"stop,omitempty"`
	Length    int             `json:"length,omitempty"`
	Resolvers []ParamResolver `json:"resolvers,omitempty"`
	Sweeps    []*SweepSpec    `json:"sweeps,omitempty"`
}

// Build converts the specification into a Sweep. A nil spec, or an empty
// type, is the unit sweep.
func (s *SweepSpec) Build() (Sweep, error) {
	if s == nil {
		return UnitSweep{}, nil
	}

	switch s.Type {
	case "", SweepUnit:
		return UnitSweep{}, nil
	case SweepPoints:
		if s.Key == "" {
			return nil, fmt.Errorf("%w: points sweep needs a key", ErrInvalidSweep)
		}
		return Points{Key: s.Key, Values: s.Values}, nil
	case SweepLinspace:
		if s.Key == "" {
			return nil, fmt.Errorf("%w: linspace sweep needs a key", ErrInvalidSweep)
		}
		if s.Length < 1 {
			return nil, fmt.Errorf("%w: linspace length must be positive", ErrInvalidSweep)
		}
		if s.Length > MaxSweepPoints {
			return nil, fmt.Errorf("%w: linspace length %d", ErrSweepTooLarge, s.Length)
		}
		return Linspace{Key: s.Key, Start: s.Start, Stop: s.Stop, Length: s.Length}, nil
	case SweepList:
		return ListSweep(s.Resolvers), nil
	case SweepProduct, SweepZip:
		parts := make([]Sweep, 0, len(s.Sweeps))
		for i, child := range s.Sweeps {
			sw, err := child.Build()
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", s.Type, i, err)
			}
			parts = append(parts, sw)
		}
		if s.Type == SweepProduct {
			return Product(parts...), nil
		}
		return Zip(parts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidSweep, s.Type)
	}
}

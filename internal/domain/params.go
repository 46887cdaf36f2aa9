package domain

import (
	"maps"
	"math"
	"sort"
)

// ParamResolver binds symbol names to concrete values.
type ParamResolver map[string]float64

// Value returns the value bound to symbol.
func (r ParamResolver) Value(symbol string) (float64, bool) {
	v, ok := r[symbol]
	return v, ok
}

// Sweep is an ordered sequence of parameter resolvers.
type Sweep interface {
	// Len is the number of resolvers the sweep expands to.
	Len() int
	// Keys are the symbol names the sweep binds.
	Keys() []string
	// Resolvers expands the sweep, in order.
	Resolvers() []ParamResolver
}

// ToResolvers expands s. A nil sweep is a single empty resolver.
func ToResolvers(s Sweep) []ParamResolver {
	if s == nil {
		return UnitSweep{}.Resolvers()
	}
	return s.Resolvers()
}

// Take expands at most the first n resolvers of s. Products and zips are
// expanded lazily, so a huge sweep truncated to a few points stays cheap.
func Take(s Sweep, n int) []ParamResolver {
	if s == nil {
		s = UnitSweep{}
	}
	n = max(0, min(n, s.Len()))
	switch s := s.(type) {
	case Linspace:
		return s.take(n)
	case productSweep:
		return s.take(n)
	case zipSweep:
		return s.take(n)
	}
	return s.Resolvers()[:n]
}

// UnitSweep is a sweep with a single empty resolver.
type UnitSweep struct{}

func (UnitSweep) Len() int                   { return 1 }
func (UnitSweep) Keys() []string             { return nil }
func (UnitSweep) Resolvers() []ParamResolver { return []ParamResolver{{}} }

// Points sweeps one symbol over explicit values.
type Points struct {
	Key    string
	Values []float64
}

func (p Points) Len() int       { return len(p.Values) }
func (p Points) Keys() []string { return []string{p.Key} }

func (p Points) Resolvers() []ParamResolver {
	out := make([]ParamResolver, len(p.Values))
	for i, v := range p.Values {
		out[i] = ParamResolver{p.Key: v}
	}
	return out
}

// Linspace sweeps one symbol over Length evenly spaced values from Start to
// Stop inclusive.
type Linspace struct {
	Key    string
	Start  float64
	Stop   float64
	Length int
}

func (l Linspace) Len() int {
	if l.Length < 0 {
		return 0
	}
	return l.Length
}

func (l Linspace) Keys() []string { return []string{l.Key} }

func (l Linspace) Resolvers() []ParamResolver { return l.take(l.Len()) }

func (l Linspace) take(n int) []ParamResolver {
	total := l.Len()
	out := make([]ParamResolver, n)
	for i := 0; i < n; i++ {
		v := l.Start
		if total > 1 {
			v = l.Start + (l.Stop-l.Start)*float64(i)/float64(total-1)
		}
		out[i] = ParamResolver{l.Key: v}
	}
	return out
}

// ListSweep is an explicit list of resolvers.
type ListSweep []ParamResolver

func (l ListSweep) Len() int { return len(l) }

func (l ListSweep) Keys() []string {
	seen := make(map[string]struct{})
	for _, r := range l {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (l ListSweep) Resolvers() []ParamResolver {
	out := make([]ParamResolver, len(l))
	for i, r := range l {
		out[i] = maps.Clone(r)
		if out[i] == nil {
			out[i] = ParamResolver{}
		}
	}
	return out
}

type productSweep struct {
	factors []Sweep
}

// Product is the cartesian product of sweeps. The first sweep varies slowest.
func Product(sweeps ...Sweep) Sweep {
	return productSweep{factors: sweeps}
}

// Len saturates at math.MaxInt.
func (p productSweep) Len() int {
	n := 1
	for _, f := range p.factors {
		l := f.Len()
		if l == 0 {
			return 0
		}
		if n > math.MaxInt/l {
			n = math.MaxInt
			continue
		}
		n *= l
	}
	return n
}

func (p productSweep) Keys() []string {
	var keys []string
	for _, f := range p.factors {
		keys = append(keys, f.Keys()...)
	}
	return keys
}

func (p productSweep) Resolvers() []ParamResolver { return p.take(p.Len()) }

// take builds the first n points directly from their mixed-radix digits.
// No digit of point i exceeds i, so each factor only expands n points.
func (p productSweep) take(n int) []ParamResolver {
	lens := make([]int, len(p.factors))
	parts := make([][]ParamResolver, len(p.factors))
	for k, f := range p.factors {
		lens[k] = f.Len()
		parts[k] = Take(f, n)
	}

	out := make([]ParamResolver, n)
	digits := make([]int, len(p.factors))
	for i := range out {
		rest := i
		for k := len(p.factors) - 1; k >= 0; k-- {
			digits[k] = rest % lens[k]
			rest /= lens[k]
		}
		point := ParamResolver{}
		for k, d := range digits {
			maps.Copy(point, parts[k][d])
		}
		out[i] = point
	}
	return out
}

type zipSweep struct {
	parts []Sweep
}

// Zip steps sweeps in lock-step, truncated to the shortest.
func Zip(sweeps ...Sweep) Sweep {
	return zipSweep{parts: sweeps}
}

func (z zipSweep) Len() int {
	if len(z.parts) == 0 {
		return 0
	}
	n := z.parts[0].Len()
	for _, p := range z.parts[1:] {
		n = min(n, p.Len())
	}
	return n
}

func (z zipSweep) Keys() []string {
	var keys []string
	for _, p := range z.parts {
		keys = append(keys, p.Keys()...)
	}
	return keys
}

func (z zipSweep) Resolvers() []ParamResolver { return z.take(z.Len()) }

func (z zipSweep) take(n int) []ParamResolver {
	out := make([]ParamResolver, n)
	for i := range out {
		out[i] = ParamResolver{}
	}
	for _, p := range z.parts {
		for i, r := range Take(p, n) {
			out[i] = merge(out[i], r)
		}
	}
	return out
}

func merge(a, b ParamResolver) ParamResolver {
	out := make(ParamResolver, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}

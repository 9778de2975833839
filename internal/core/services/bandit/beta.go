// Package bandit implements the Beta sampler shared by every Thompson-
// sampling bandit in the engine (C2), plus the three concrete bandits built
// on top of it: per-AP attack-phase selection (C3), channel selection (C4),
// and mode selection (C5).
package bandit

import (
	"math"

	"github.com/corvid-labs/harvestd/internal/core/ports"
)

// MinParam is the floor every Beta-posterior parameter is clamped to (§4.2,
// §8 law 1).
const MinParam = 0.01

// Sampler draws from Beta(alpha, beta) using two independent Gamma draws,
// per §4.2: X ~ Gamma(alpha,1), Y ~ Gamma(beta,1), return X/(X+Y).
type Sampler struct {
	rng ports.RandSource
}

// NewSampler wraps an injectable PRNG so tests can seed deterministically.
func NewSampler(rng ports.RandSource) *Sampler {
	return &Sampler{rng: rng}
}

// Clamp enforces the >= 0.01 floor on a single Beta parameter.
func Clamp(v float64) float64 {
	if v < MinParam {
		return MinParam
	}
	return v
}

// Sample draws one value from Beta(alpha, beta).
func (s *Sampler) Sample(alpha, beta float64) float64 {
	alpha = Clamp(alpha)
	beta = Clamp(beta)
	x := s.gamma(alpha)
	y := s.gamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gamma draws one sample from Gamma(shape, 1) using Marsaglia-Tsang for
// shape >= 1, and the boosting identity Gamma(shape) = Gamma(shape+1)*U^(1/shape)
// for shape < 1, per §4.2.
func (s *Sampler) gamma(shape float64) float64 {
	if shape < 1 {
		u := s.rng.Float64()
		if u <= 0 {
			u = 1e-12
		}
		return s.gammaMarsagliaTsang(shape+1) * math.Pow(u, 1/shape)
	}
	return s.gammaMarsagliaTsang(shape)
}

// gammaMarsagliaTsang implements the Marsaglia-Tsang method for shape >= 1.
func (s *Sampler) gammaMarsagliaTsang(shape float64) float64 {
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)

	for {
		var x, v float64
		for {
			x = s.normal()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := s.rng.Float64()
		if u <= 0 {
			u = 1e-12
		}
		if u < 1-0.0331*(x*x)*(x*x) {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// normal draws a standard-normal value via Box-Muller, consuming the
// injected RandSource exclusively (no package-level math/rand use, per the
// design note to centralize PRNG behind one injectable source).
func (s *Sampler) normal() float64 {
	u1 := s.rng.Float64()
	u2 := s.rng.Float64()
	if u1 <= 0 {
		u1 = 1e-12
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

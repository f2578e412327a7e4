package sim

import (
	"math"
	"math/rand"
	"sort"
)

// Process evolves the driver's target mid price through a regime-switching
// jump-diffusion with momentum and mean reversion toward an anchor.
//
// All randomness flows through the *rand.Rand handed to each call, and every
// step draws in a fixed order (switch, shock, jump), so two processes with
// identical parameters and an identically-seeded generator replay the same
// path. Regime names are kept sorted for the same reason: a switch picks
// uniformly from a stable ordering.
type Process struct {
	regimes     map[string]RegimeParams
	regimeNames []string
	switchProb  float64
	meanRev     float64
	minPrice    float64

	Mid      float64
	Anchor   float64
	Momentum float64
	Regime   string
}

// NewProcess builds a mid-price process starting at start in the normal
// regime, anchored at its starting price.
func NewProcess(start, minPrice, meanReversion, switchProb float64, regimes map[string]RegimeParams) *Process {
	names := make([]string, 0, len(regimes))
	for name := range regimes {
		names = append(names, name)
	}
	sort.Strings(names)

	mid := math.Max(minPrice, start)
	return &Process{
		regimes:     regimes,
		regimeNames: names,
		switchProb:  switchProb,
		meanRev:     meanReversion,
		minPrice:    minPrice,
		Mid:         mid,
		Anchor:      mid,
		Regime:      RegimeNormal,
	}
}

// Params returns the parameter bundle of the current regime.
func (p *Process) Params() RegimeParams { return p.regimes[p.Regime] }

// Step advances the mid price by one tick:
//
//  1. with probability switchProb, switch to a uniformly random regime
//  2. draw the diffusion shock and decay momentum into it
//  3. with the regime's jump probability, draw a jump
//  4. drift back toward the anchor
//  5. apply, flooring the multiplier and the price itself
//
// volScale comes from the intraday volatility curve and scales both the
// shock and jump sigmas.
func (p *Process) Step(rng *rand.Rand, volScale float64) {
	if rng.Float64() < p.switchProb {
		p.Regime = p.regimeNames[rng.Intn(len(p.regimeNames))]
	}
	params := p.regimes[p.Regime]

	shock := rng.NormFloat64() * params.Sigma * volScale
	p.Momentum = 0.95*p.Momentum + shock

	jump := 0.0
	if rng.Float64() < params.JumpProb {
		jump = rng.NormFloat64() * params.JumpSigma * volScale
	}

	drift := p.meanRev * (p.Anchor - p.Mid) / p.Anchor

	p.Mid = math.Max(p.minPrice, p.Mid*math.Max(0.01, 1.0+shock+jump+drift))
}

// EndOfDay applies the overnight adjustments: a gap on the mid, a drift on
// the anchor, momentum damping, and a reset to the normal regime.
func (p *Process) EndOfDay(rng *rand.Rand, overnightSigma, driftSigma float64) {
	p.Mid = math.Max(p.minPrice, p.Mid*(1.0+rng.NormFloat64()*overnightSigma))
	p.Anchor = math.Max(p.minPrice, p.Anchor*(1.0+rng.NormFloat64()*driftSigma))
	p.Momentum *= 0.3
	p.Regime = RegimeNormal
}

// ActivityFactor is the intraday order-arrival U-curve: elevated at the
// open, quiet at midday, a rush into the close. Clamped to [0.3, 2.5].
func ActivityFactor(sec, sessionSeconds int) float64 {
	tau := float64(sec) / float64(sessionSeconds)
	u := 4.0 * (tau - 0.5) * (tau - 0.5)
	openBoost := math.Max(0, 1.0-5.0*tau) * 0.5
	closeRush := math.Max(0, (tau-0.85)/0.15) * 0.3
	return clamp(0.3, 2.5, 0.4+1.2*u+openBoost+closeRush)
}

// VolatilityFactor is the intraday volatility U-curve, with an extra kick in
// the first 5% of the session. Clamped to [0.4, 2.0].
func VolatilityFactor(sec, sessionSeconds int) float64 {
	tau := float64(sec) / float64(sessionSeconds)
	u := 4.0 * (tau - 0.5) * (tau - 0.5)
	open := 0.0
	if tau < 0.05 {
		open = 0.4
	}
	return clamp(0.4, 2.0, 0.6+0.6*u+open)
}

func clamp(lo, hi, v float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

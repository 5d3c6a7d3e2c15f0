package client

import (
	"math"
	"time"

	"github.com/orbitalrush/grid/internal/config"
)

// varianceWeight (k in §4.G item 4's "healthy = ceil((rtt + variance·k)/TIMESTEP) + margin")
// scales the RTT variance term before folding it into the healthy
// lookahead target. Not a wire-compatibility constant — each client
// picks its own tolerance for jitter independent of what the server or
// other clients use.
const varianceWeight = 2.0

// Dilation is the small, pure time-dilation controller of §4.G item 4:
// it tracks only the current speed-up/slow-down factor, leaving the
// accumulator and replay state to Predictor. Kept as its own type so
// dilation can be modeled separately from the accumulator it scales.
type Dilation struct {
	Factor float64
}

// Healthy returns the target tick lookahead a client should maintain
// given its current RTT estimate: enough ticks ahead that a snapshot
// reflecting input sent now will already have been processed by the
// time it's needed, plus a fixed margin.
func Healthy(rtt, variance time.Duration, margin int) int {
	target := rtt.Seconds() + variance.Seconds()*varianceWeight
	ticks := int(math.Ceil(target / config.Timestep.Seconds()))
	return ticks + margin
}

// Update recomputes the dilation factor (§4.G item 4) from how far
// ahead of the server the local prediction currently runs, and
// reports whether the gap is large enough to warrant a hard snap
// instead of a gradual dilation correction.
func (d *Dilation) Update(ticksAhead, healthy, ticksBehindDoSnap int) (snap bool) {
	switch {
	case ticksAhead < healthy:
		d.Factor = 1.1
	case ticksAhead > healthy:
		d.Factor = 0.9
	default:
		d.Factor = 1.0
	}
	return ticksAhead < healthy-ticksBehindDoSnap
}

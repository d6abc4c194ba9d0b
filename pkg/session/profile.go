package session

import (
	"time"

	"github.com/bft-labs/simreplay/pkg/log"
)

// profile accumulates step timings.
type profile struct {
	steps int
	total time.Duration
	max   time.Duration
}

func (p *profile) add(d time.Duration) {
	p.steps++
	p.total += d
	if d > p.max {
		p.max = d
	}
}

func (p *profile) mean() time.Duration {
	if p.steps == 0 {
		return 0
	}
	return p.total / time.Duration(p.steps)
}

func (p *profile) fps() float64 {
	if p.total <= 0 {
		return 0
	}
	return float64(p.steps) / p.total.Seconds()
}

func (p *profile) log(logger log.Logger) {
	logger.Info("step profile",
		log.Int("steps", p.steps),
		log.Duration("mean", p.mean()),
		log.Duration("max", p.max),
		log.Float64("fps", p.fps()),
	)
}

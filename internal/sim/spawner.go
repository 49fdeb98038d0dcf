package sim

import (
	"errors"

	"github.com/nidhogg/nuka-resort/internal/chance"
	"github.com/nidhogg/nuka-resort/internal/visitor"
	"go.uber.org/zap"
)

// Spawner brings new visitors in while the resort is open.
type Spawner struct {
	pop       *visitor.Population
	src       chance.Source
	perTick   float64
	openHour  int
	closeHour int
	logger    *zap.Logger
}

// NewSpawner creates a spawner that admits a visitor with the given chance
// per tick during [openHour, closeHour).
func NewSpawner(pop *visitor.Population, src chance.Source, perTick float64, openHour, closeHour int, logger *zap.Logger) *Spawner {
	return &Spawner{
		pop:       pop,
		src:       src,
		perTick:   perTick,
		openHour:  openHour,
		closeHour: closeHour,
		logger:    logger,
	}
}

// Open reports whether visitors are admitted at hour.
func (s *Spawner) Open(hour int) bool {
	return hour >= s.openHour && hour < s.closeHour
}

// MaybeSpawn admits at most one visitor. It reports whether one came in.
func (s *Spawner) MaybeSpawn(hour int) bool {
	if !s.Open(hour) || s.src.Float64() >= s.perTick {
		return false
	}
	info, err := s.pop.Spawn("")
	if err != nil {
		if errors.Is(err, visitor.ErrPopulationFull) {
			s.logger.Debug("resort full, nobody admitted")
		} else {
			s.logger.Warn("spawn visitor", zap.Error(err))
		}
		return false
	}
	s.logger.Debug("visitor admitted", zap.String("visitor", info.ID), zap.Int("hour", hour))
	return true
}

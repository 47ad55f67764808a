package nnet

import "math"

// Scheduler reduces the learning rate when the monitored validation loss
// stops improving: after patience consecutive epochs without a new best the
// rate is multiplied by factor. The rate only ever decreases and keeps
// halving for as long as the plateau lasts.
type Scheduler struct {
	lr       float64
	factor   float64
	patience int
	best     float64
	bad      int
}

func NewScheduler(lr, factor float64, patience int) *Scheduler {
	if factor <= 0 || factor >= 1 {
		factor = 0.5
	}
	if patience <= 0 {
		patience = 2
	}
	return &Scheduler{lr: lr, factor: factor, patience: patience, best: math.Inf(1)}
}

// LR returns the current learning rate.
func (s *Scheduler) LR() float64 { return s.lr }

// Step records one epoch's monitored loss and decays the rate on plateau.
func (s *Scheduler) Step(loss float64) {
	if loss < s.best {
		s.best = loss
		s.bad = 0
		return
	}
	s.bad++
	if s.bad >= s.patience {
		s.lr *= s.factor
		s.bad = 0
	}
}

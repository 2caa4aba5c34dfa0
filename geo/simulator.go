package geo

import (
	"sync"
	"time"
)

// Simulator is a fake Source that walks from a starting point in small
// steps, for running the agent without a real device feed.
type Simulator struct {
	mu        sync.Mutex
	listeners map[int]func(Sample)
	nextID    int
	lat, lng  float64
	step      float64
	interval  time.Duration
	stop      chan struct{}
	started   bool
}

func NewSimulator(lat, lng float64, interval time.Duration) *Simulator {
	return &Simulator{
		listeners: make(map[int]func(Sample)),
		lat:       lat,
		lng:       lng,
		step:      0.001,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

func (s *Simulator) Subscribe(fn func(Sample)) Unsubscribe {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	if !s.started {
		s.started = true
		go s.run()
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Stop halts the walker. Listeners receive nothing afterwards.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		close(s.stop)
		s.started = false
	}
}

func (s *Simulator) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.lat += s.step
			s.lng += s.step
			sample := Sample{
				Latitude:  s.lat,
				Longitude: s.lng,
				Accuracy:  5,
				Timestamp: time.Now(),
			}
			fns := make([]func(Sample), 0, len(s.listeners))
			for _, fn := range s.listeners {
				fns = append(fns, fn)
			}
			s.mu.Unlock()

			for _, fn := range fns {
				fn(sample)
			}
		}
	}
}

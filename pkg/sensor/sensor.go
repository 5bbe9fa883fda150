// Package sensor provides the sources a cycle reads its raw sample from.
package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/ergosense/ergosense/pkg/reading"
)

// Adapter produces one raw sample per call.
type Adapter interface {
	Read(ctx context.Context) (reading.Raw, error)
	Close() error
}

var (
	_ Adapter = &Simulated{}
	_ Adapter = &Scripted{}
)

// Simulated produces synthetic samples that drift around a comfortable
// desk setup, occasionally leaning back or losing the DHT sensor.
type Simulated struct {
	mu   sync.Mutex
	rand *rand.Rand
	last reading.Raw
}

// NewSimulated returns a simulated adapter seeded with seed.
func NewSimulated(seed int64) *Simulated {
	return &Simulated{
		rand: rand.New(rand.NewSource(seed)),
		last: reading.Raw{DistanceCm: 60, LightRaw: 800, TemperatureC: 22, HumidityPct: 50},
	}
}

func (s *Simulated) Read(ctx context.Context) (reading.Raw, error) {
	if err := ctx.Err(); err != nil {
		return reading.Raw{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := reading.Raw{
		DistanceCm:   clamp(s.last.DistanceCm+s.rand.NormFloat64()*15, 20, 450),
		LightRaw:     int(clamp(float64(s.last.LightRaw)+s.rand.NormFloat64()*120, 0, reading.LightRawMax)),
		TemperatureC: clamp(s.last.TemperatureC+s.rand.NormFloat64()*0.3, 10, 35),
		HumidityPct:  clamp(s.last.HumidityPct+s.rand.NormFloat64()*1.5, 15, 85),
	}
	s.last = next

	// roughly one DHT dropout every hundred samples
	if s.rand.Intn(100) == 0 {
		next.TemperatureC = math.NaN()
	}
	return next, nil
}

func (s *Simulated) Close() error { return nil }

// Scripted replays a fixed list of samples, then keeps returning the last
// one. It is useful for demos and tests.
type Scripted struct {
	mu      sync.Mutex
	samples []reading.Raw
	pos     int
}

func NewScripted(samples ...reading.Raw) *Scripted {
	return &Scripted{samples: samples}
}

func (s *Scripted) Read(ctx context.Context) (reading.Raw, error) {
	if err := ctx.Err(); err != nil {
		return reading.Raw{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) == 0 {
		return reading.Raw{}, pkgerrors.New("no scripted samples")
	}
	r := s.samples[s.pos]
	if s.pos < len(s.samples)-1 {
		s.pos++
	}
	return r, nil
}

func (s *Scripted) Close() error { return nil }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

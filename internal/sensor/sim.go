package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/bonsailab/bonsaictl/internal/model"
)

// Simulated ADC calibration endpoints, dry to wet.
const (
	simRawDry = 32000
	simRawWet = 12000
)

// SimSource synthesizes a moisture curve that dries out through the day
// with sensor noise on top. Lets the controller run without a probe.
type SimSource struct {
	mu        sync.Mutex
	rng       *rand.Rand
	channel   int
	available bool
	now       func() time.Time
}

func NewSimSource(seed int64, channel int) *SimSource {
	return &SimSource{
		rng:       rand.New(rand.NewSource(seed)),
		channel:   channel,
		available: true,
		now:       time.Now,
	}
}

// SetAvailable toggles simulated sensor failure.
func (s *SimSource) SetAvailable(ok bool) {
	s.mu.Lock()
	s.available = ok
	s.mu.Unlock()
}

func (s *SimSource) ReadMoisture() (model.MoistureReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return model.MoistureReading{}, ErrUnavailable
	}

	now := s.now()
	dayFrac := float64(now.Unix()%86400) / 86400
	base := 50 + 30*(1-dayFrac)
	pct := base + s.rng.Float64()*3 - 1.5
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	pct = math.Round(pct*10) / 10

	raw := simRawDry - int(pct/100*float64(simRawDry-simRawWet))
	raw += s.rng.Intn(601) - 300

	return model.MoistureReading{
		Timestamp: now,
		Percent:   pct,
		Raw:       raw,
		Channel:   s.channel,
	}, nil
}

package plant

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-plantbus/logger"
)

// Sensor is one presence sensor: its discrete-input binding, the object kind
// it detects, and its edge-tracked triggered state.
//
// Sensor state is mutated only through Sensors.SetTriggered and is owned by
// the tick loop.
type Sensor struct {
	tag     string
	addr    uint16
	detects ObjectKind

	triggered     bool
	lastTriggered bool
	changed       bool
}

// Tag returns the unique sensor tag.
func (s *Sensor) Tag() string { return s.tag }

// Address returns the bound discrete-input address.
func (s *Sensor) Address() uint16 { return s.addr }

// Detects returns the object kind this sensor reacts to.
func (s *Sensor) Detects() ObjectKind { return s.detects }

// Triggered reports the current triggered flag.
func (s *Sensor) Triggered() bool { return s.triggered }

// Changed reports whether the triggered flag transitioned since the last
// consume.
func (s *Sensor) Changed() bool { return s.changed }

// Sensors is the registry of sensor records keyed by tag. Records are created
// once at registration time and never destroyed during a run.
type Sensors struct {
	recs   *xsync.MapOf[string, *Sensor]
	logger logger.Logger
}

// NewSensors creates an empty sensor registry.
func NewSensors(l logger.Logger) *Sensors {
	return &Sensors{
		recs:   xsync.NewMapOf[string, *Sensor](),
		logger: l,
	}
}

// Register creates a sensor record with triggered=false. Registering a tag
// twice leaves the existing record in place and returns false.
func (s *Sensors) Register(tag string, addr uint16, detects ObjectKind) (*Sensor, bool) {
	rec := &Sensor{tag: tag, addr: addr, detects: detects}
	if _, loaded := s.recs.LoadOrStore(tag, rec); loaded {
		s.logger.Warn("sensor already registered", "tag", tag)
		return nil, false
	}

	s.logger.Info("sensor registered", "tag", tag, "address", addr, "detects", detects)

	return rec, true
}

// Get returns the sensor record for tag.
func (s *Sensors) Get(tag string) (*Sensor, bool) {
	return s.recs.Load(tag)
}

// SetTriggered shifts the current triggered flag into lastTriggered, stores
// the new value, and recomputes the changed flag as the edge between the two.
//
// An unknown tag is a collaborator wiring bug, not a runtime fault: the call
// is a logged no-op.
func (s *Sensors) SetTriggered(tag string, triggered bool) {
	rec, ok := s.recs.Load(tag)
	if !ok {
		s.logger.Warn("set triggered on unknown sensor", "tag", tag)
		return
	}

	rec.lastTriggered = rec.triggered
	rec.triggered = triggered
	rec.changed = rec.triggered != rec.lastTriggered
}

// ConsumeChanged returns the changed flag for tag and clears it. It is meant
// to be called exactly once per tick per changed sensor by the push pass, so
// each transition is exported exactly once. An unknown tag returns false.
func (s *Sensors) ConsumeChanged(tag string) bool {
	rec, ok := s.recs.Load(tag)
	if !ok {
		s.logger.Warn("consume changed on unknown sensor", "tag", tag)
		return false
	}

	changed := rec.changed
	rec.changed = false

	return changed
}

// IsTriggered reports the triggered flag for tag, false for unknown tags.
func (s *Sensors) IsTriggered(tag string) bool {
	rec, ok := s.recs.Load(tag)

	return ok && rec.triggered
}

// ChangedSensors returns all sensors whose changed flag is set.
func (s *Sensors) ChangedSensors() []*Sensor {
	var changed []*Sensor
	s.recs.Range(func(tag string, rec *Sensor) bool {
		if rec.changed {
			changed = append(changed, rec)
		}

		return true
	})

	return changed
}

// Apply translates a zone event into a SetTriggered call when the event kind
// matches the sensor's configured kind. It returns true when the sensor
// reacted.
func (s *Sensors) Apply(ev Event) bool {
	rec, ok := s.recs.Load(ev.SensorTag)
	if !ok {
		s.logger.Warn("event for unknown sensor", "tag", ev.SensorTag)
		return false
	}

	if rec.detects != ev.Kind {
		return false
	}

	s.SetTriggered(ev.SensorTag, ev.Entered)

	return true
}

package sim

import (
	"time"

	"github.com/arloliu/go-plantbus/logger"
	"github.com/arloliu/go-plantbus/plant"
)

const (
	// bottleSpawnPeriod is the cadence of new bottles while the conveyor
	// runs.
	bottleSpawnPeriod = 2 * time.Second

	// ballLifetime caps how long a ball exists before it is cleaned up.
	ballLifetime = 30 * time.Second

	// maxBalls caps the ball population; the oldest balls are removed first.
	maxBalls = 100

	// lineLength is the conveyor length; bottles past the end leave the
	// line.
	lineLength = 400.0

	// ballTravel is the distance from the valve to below the bottle mouth;
	// balls past it are considered spilled and removed.
	ballTravel = 200.0

	// ballFallSpeed is the constant fall speed of balls, per second.
	ballFallSpeed = 100.0
)

// Zone is one sensor zone: an interval on the axis travelled by its object
// kind (conveyor position for bottles, fall distance for balls).
type Zone struct {
	Tag   string
	Kind  plant.ObjectKind
	Start float64
	End   float64
}

type object struct {
	kind   plant.ObjectKind
	pos    float64
	age    time.Duration
	inZone map[string]bool
}

// Line advances the simulated bottling line and raises sensor events against
// the bridge. It is driven from the tick loop and is not goroutine-safe.
type Line struct {
	bridge   *plant.Bridge
	conveyor *plant.Equipment
	valve    *plant.Equipment
	zones    []Zone
	logger   logger.Logger

	bottles []*object
	balls   []*object

	bottleClock   time.Duration
	ballClock     time.Duration
	lastValveRate float64
}

// NewLine creates a line over the given bridge and equipment records.
func NewLine(bridge *plant.Bridge, conveyor *plant.Equipment, valve *plant.Equipment, zones []Zone, l logger.Logger) *Line {
	return &Line{
		bridge:        bridge,
		conveyor:      conveyor,
		valve:         valve,
		zones:         zones,
		logger:        l,
		lastValveRate: valve.Rate(),
	}
}

// Tick advances the line by dt and runs the synchronization bridge. It is
// the once-per-tick entry point for the tick loop.
func (ln *Line) Tick(dt time.Duration) {
	ln.Advance(dt)
	ln.bridge.Sync()
}

// Advance moves the simulation by dt without running the bridge: spawn,
// move, detect zone transitions, apply domain rules, clean up.
func (ln *Line) Advance(dt time.Duration) {
	ln.spawn(dt)
	ln.move(dt)

	for _, ev := range ln.detect() {
		ln.apply(ev)
	}

	ln.cleanup()
}

// BottleCount returns the number of bottles on the line.
func (ln *Line) BottleCount() int { return len(ln.bottles) }

// BallCount returns the number of live balls.
func (ln *Line) BallCount() int { return len(ln.balls) }

func (ln *Line) spawn(dt time.Duration) {
	if ln.conveyor.Active() {
		ln.bottleClock += dt
		if ln.bottleClock >= bottleSpawnPeriod {
			ln.bottleClock -= bottleSpawnPeriod
			ln.bottles = append(ln.bottles, &object{kind: plant.Bottle, inZone: make(map[string]bool)})
			ln.logger.Debug("bottle spawned", "bottles", len(ln.bottles))
		}
	}

	// the valve rate is the spawn period in seconds; a rate change resets
	// the spawn clock
	if ln.valve.Rate() != ln.lastValveRate {
		ln.lastValveRate = ln.valve.Rate()
		ln.ballClock = 0
	}

	if ln.valve.Active() && ln.lastValveRate > 0 {
		period := time.Duration(ln.lastValveRate * float64(time.Second))
		ln.ballClock += dt
		if ln.ballClock >= period {
			ln.ballClock -= period
			ln.balls = append(ln.balls, &object{kind: plant.Ball, inZone: make(map[string]bool)})
			ln.logger.Debug("ball spawned", "balls", len(ln.balls))
		}
	}
}

func (ln *Line) move(dt time.Duration) {
	seconds := dt.Seconds()

	if ln.conveyor.Active() {
		for _, b := range ln.bottles {
			b.pos += ln.conveyor.Rate() * seconds
		}
	}

	for _, b := range ln.balls {
		b.pos += ballFallSpeed * seconds
		b.age += dt
	}
	for _, b := range ln.bottles {
		b.age += dt
	}
}

// detect computes zone enter/leave transitions for every object against
// every zone of its kind.
func (ln *Line) detect() []plant.Event {
	var events []plant.Event

	objects := make([]*object, 0, len(ln.bottles)+len(ln.balls))
	objects = append(objects, ln.bottles...)
	objects = append(objects, ln.balls...)

	for _, obj := range objects {
		for _, zone := range ln.zones {
			if zone.Kind != obj.kind {
				continue
			}

			inside := obj.pos >= zone.Start && obj.pos < zone.End
			if inside != obj.inZone[zone.Tag] {
				obj.inZone[zone.Tag] = inside
				events = append(events, plant.Event{SensorTag: zone.Tag, Kind: obj.kind, Entered: inside})
			}
		}
	}

	return events
}

// apply feeds a zone event to the sensor registry and, when the sensor
// reacted, runs the line's toggle rules: a bottle at the fill position stops
// the conveyor and opens the valve, water reaching the bottle closes the
// valve and restarts the conveyor.
func (ln *Line) apply(ev plant.Event) {
	if !ln.bridge.Sensors().Apply(ev) {
		return
	}

	if !ev.Entered {
		ln.logger.Debug("sensor released", "tag", ev.SensorTag, "kind", ev.Kind)
		return
	}

	ln.logger.Info("sensor triggered", "tag", ev.SensorTag, "kind", ev.Kind)

	switch ev.Kind {
	case plant.Bottle:
		ln.conveyor.SetActive(false)
		ln.valve.SetActive(true)
	case plant.Ball:
		ln.valve.SetActive(false)
		ln.conveyor.SetActive(true)
	}
}

func (ln *Line) cleanup() {
	bottles := ln.bottles[:0]
	for _, b := range ln.bottles {
		if b.pos < lineLength {
			bottles = append(bottles, b)
		}
	}
	ln.bottles = bottles

	balls := ln.balls[:0]
	for _, b := range ln.balls {
		if b.age < ballLifetime && b.pos < ballTravel {
			balls = append(balls, b)
		}
	}
	ln.balls = balls

	if len(ln.balls) > maxBalls {
		ln.balls = ln.balls[len(ln.balls)-maxBalls:]
	}
}

package plant

import "fmt"

// ObjectKind is the closed enumeration of object kinds a sensor can detect.
// It replaces runtime type identity on events and sensor configuration, so a
// sensor only reacts to its configured kind.
type ObjectKind uint8

const (
	// Bottle is a bottle travelling on the conveyor.
	Bottle ObjectKind = iota
	// Ball is a water ball dropped by the valve.
	Ball
)

func (k ObjectKind) String() string {
	switch k {
	case Bottle:
		return "bottle"
	case Ball:
		return "ball"
	default:
		return fmt.Sprintf("object(%d)", uint8(k))
	}
}

// ParseObjectKind converts a configuration string into an ObjectKind.
func ParseObjectKind(s string) (ObjectKind, error) {
	switch s {
	case "bottle":
		return Bottle, nil
	case "ball":
		return Ball, nil
	default:
		return 0, fmt.Errorf("unknown object kind: %q", s)
	}
}

// Event reports an object of a given kind entering or leaving a sensor zone.
// Events are raised by the simulation and translated into SetTriggered calls.
type Event struct {
	SensorTag string
	Kind      ObjectKind
	Entered   bool
}

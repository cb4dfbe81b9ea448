package plant

import "math"

// Equipment is the change-tracked state of one piece of simulated equipment.
// The active flag means "running" for the conveyor and "open" for the valve;
// the rate is the conveyor speed or the valve spawn rate.
//
// Each equipment instance owns one coil address and one holding-register
// address, assigned at construction time and never changed. Any mutation
// through SetActive or SetRate marks the record dirty; the push pass clears
// the flag after exporting both fields together.
//
// Equipment is not goroutine-safe; it is owned by the tick loop.
type Equipment struct {
	tag         string
	coilAddr    uint16
	holdingAddr uint16

	active bool
	rate   float64
	dirty  bool
}

// NewEquipment creates an equipment record with its register bindings and
// initial state. The record starts dirty so the first push pass exports the
// initial state.
func NewEquipment(tag string, coilAddr uint16, holdingAddr uint16, active bool, rate float64) *Equipment {
	return &Equipment{
		tag:         tag,
		coilAddr:    coilAddr,
		holdingAddr: holdingAddr,
		active:      active,
		rate:        rate,
		dirty:       true,
	}
}

// Tag returns the equipment tag.
func (e *Equipment) Tag() string { return e.tag }

// CoilAddress returns the bound coil address.
func (e *Equipment) CoilAddress() uint16 { return e.coilAddr }

// HoldingAddress returns the bound holding-register address.
func (e *Equipment) HoldingAddress() uint16 { return e.holdingAddr }

// Active reports whether the equipment is running/open.
func (e *Equipment) Active() bool { return e.active }

// Rate returns the equipment rate.
func (e *Equipment) Rate() float64 { return e.rate }

// SetActive mutates the active flag and marks the record dirty.
func (e *Equipment) SetActive(active bool) {
	e.active = active
	e.dirty = true
}

// SetRate mutates the rate and marks the record dirty.
func (e *Equipment) SetRate(rate float64) {
	e.rate = rate
	e.dirty = true
}

// Toggle flips the active flag, the equivalent of the operator key binding.
func (e *Equipment) Toggle() {
	e.SetActive(!e.active)
}

// applyActive overwrites the active flag from a pull pass without marking the
// record dirty, so an imported value is not echoed back on the next push.
func (e *Equipment) applyActive(active bool) {
	e.active = active
}

// applyRate overwrites the rate from a pull pass without marking the record
// dirty.
func (e *Equipment) applyRate(rate float64) {
	e.rate = rate
}

// RegisterRate converts the rate to the 16-bit register domain, rounding to
// the nearest integer and clamping to [0, 65535].
func (e *Equipment) RegisterRate() uint16 {
	r := math.Round(e.rate)
	if r < 0 {
		return 0
	}
	if r > math.MaxUint16 {
		return math.MaxUint16
	}

	return uint16(r)
}

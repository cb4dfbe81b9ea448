package plant

import (
	"fmt"

	"github.com/arloliu/go-plantbus/internal/util"
	"github.com/arloliu/go-plantbus/logger"
	"github.com/arloliu/go-plantbus/register"
)

// Bridge keeps the plant state and the register store consistent. It runs
// once per simulation tick: the push pass first (local changes out), then the
// pull pass (external register writes in), so a value just exported is never
// immediately re-imported.
//
// Sync must be called from the tick loop only. The register store serializes
// access against the protocol server.
type Bridge struct {
	store     *register.Store
	sensors   *Sensors
	equipment []*Equipment
	logger    logger.Logger
}

// NewBridge creates a bridge over the given store.
func NewBridge(store *register.Store, l logger.Logger) *Bridge {
	return &Bridge{
		store:   store,
		sensors: NewSensors(l),
		logger:  l,
	}
}

// Sensors returns the sensor registry, exposed to the simulation for
// SetTriggered calls and event application.
func (b *Bridge) Sensors() *Sensors {
	return b.sensors
}

// Equipment returns a copy of the bound equipment records.
func (b *Bridge) Equipment() []*Equipment {
	return util.CloneSlice(b.equipment, 0)
}

// BindEquipment registers an equipment record with the bridge and provisions
// its coil and holding-register addresses with the current state. The binding
// is fixed for the process lifetime.
func (b *Bridge) BindEquipment(e *Equipment) error {
	if err := b.store.Coils.Provision(e.CoilAddress(), e.Active()); err != nil {
		return fmt.Errorf("provision coil 0x%04X for %s: %w", e.CoilAddress(), e.Tag(), err)
	}
	if err := b.store.HoldingRegisters.Provision(e.HoldingAddress(), e.RegisterRate()); err != nil {
		return fmt.Errorf("provision holding register 0x%04X for %s: %w", e.HoldingAddress(), e.Tag(), err)
	}

	b.equipment = append(b.equipment, e)

	b.logger.Info("equipment bound",
		"tag", e.Tag(),
		"coil", e.CoilAddress(),
		"holding", e.HoldingAddress(),
		"active", e.Active(),
		"rate", e.Rate(),
	)

	return nil
}

// BindSensor registers a sensor and provisions its discrete-input address
// with triggered=false.
func (b *Bridge) BindSensor(tag string, addr uint16, detects ObjectKind) error {
	if _, ok := b.sensors.Register(tag, addr, detects); !ok {
		return fmt.Errorf("sensor %q already registered", tag)
	}
	if err := b.store.DiscreteInputs.Provision(addr, false); err != nil {
		return fmt.Errorf("provision discrete input 0x%04X for %s: %w", addr, tag, err)
	}

	return nil
}

// Sync runs both synchronization passes for one tick.
func (b *Bridge) Sync() {
	b.push()
	b.pull()
}

// push exports dirty equipment state and changed sensor flags to the
// registers. Change detection is per record, not per field: one mutation
// exports both the coil and the holding register, which is acceptable because
// the two fields are re-synchronized together.
//
// A contended bank lock leaves the dirty or changed flag in place, so the
// export is retried on the next tick.
func (b *Bridge) push() {
	for _, e := range b.equipment {
		if !e.dirty {
			continue
		}

		okCoil, errCoil := b.store.Coils.TryWrite(e.CoilAddress(), []bool{e.Active()})
		okHold, errHold := b.store.HoldingRegisters.TryWrite(e.HoldingAddress(), []uint16{e.RegisterRate()})
		if !okCoil || !okHold {
			b.logger.Debug("push pass skipped on lock contention", "tag", e.Tag())
			continue
		}

		// wiring errors are logged, never propagated
		if errCoil != nil {
			b.logger.Warn("push coil failed", "tag", e.Tag(), "error", errCoil)
		}
		if errHold != nil {
			b.logger.Warn("push holding register failed", "tag", e.Tag(), "error", errHold)
		}

		e.dirty = false

		b.logger.Debug("equipment pushed", "tag", e.Tag(), "active", e.Active(), "rate", e.RegisterRate())
	}

	for _, sensor := range b.sensors.ChangedSensors() {
		ok, err := b.store.DiscreteInputs.TryWrite(sensor.Address(), []bool{sensor.Triggered()})
		if !ok {
			b.logger.Debug("sensor push skipped on lock contention", "tag", sensor.Tag())
			continue
		}

		if err != nil {
			b.logger.Warn("push discrete input failed", "tag", sensor.Tag(), "error", err)
		}

		b.sensors.ConsumeChanged(sensor.Tag())

		b.logger.Debug("sensor pushed", "tag", sensor.Tag(), "triggered", sensor.Triggered())
	}
}

// pull imports external register writes into the equipment state. Within each
// scan the first equipment whose register differs from its local state wins
// and the remaining equipment is skipped for that pass; this keeps a
// single-mutation-per-tick discipline and is a deliberate policy, not a bug.
func (b *Bridge) pull() {
	for _, e := range b.equipment {
		values, ok, err := b.store.Coils.TryRead(e.CoilAddress(), 1)
		if !ok {
			b.logger.Debug("coil pull pass skipped on lock contention")
			break
		}
		if err != nil {
			b.logger.Warn("pull coil failed", "tag", e.Tag(), "error", err)
			continue
		}

		if values[0] != e.Active() {
			e.applyActive(values[0])
			b.logger.Info("equipment active set from registers", "tag", e.Tag(), "active", values[0])

			break
		}
	}

	for _, e := range b.equipment {
		values, ok, err := b.store.HoldingRegisters.TryRead(e.HoldingAddress(), 1)
		if !ok {
			b.logger.Debug("holding register pull pass skipped on lock contention")
			break
		}
		if err != nil {
			b.logger.Warn("pull holding register failed", "tag", e.Tag(), "error", err)
			continue
		}

		if values[0] != e.RegisterRate() {
			e.applyRate(float64(values[0]))
			b.logger.Info("equipment rate set from registers", "tag", e.Tag(), "rate", values[0])

			break
		}
	}
}

// Package sim is the simulation collaborator of the register bridge: a
// kinematic model of the bottling line that advances once per tick and raises
// sensor zone events.
//
// The line consists of a conveyor carrying bottles along its length and a
// water valve dropping balls from above. Bottles spawn on a fixed cadence
// while the conveyor runs and advance at the conveyor rate; balls spawn at
// the valve rate while the valve is open and fall at a constant speed.
// Sensor zones watch an interval of the relevant axis and report objects of
// their configured kind entering or leaving.
//
// Domain rules are applied within the same tick, before the synchronization
// bridge runs: a bottle reaching the fill position stops the conveyor and
// opens the valve; water reaching the bottle closes the valve and restarts
// the conveyor.
//
// Collision resolution, rendering and physics are out of scope; the model is
// one-dimensional per object kind, which is sufficient to drive the sensor
// and register semantics.
package sim

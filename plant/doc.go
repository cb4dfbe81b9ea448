// Package plant models the change-tracked state of the simulated line
// equipment and keeps it consistent with the register store.
//
// Two kinds of records exist:
//   - Equipment (the conveyor and the valve): an active flag and a rate,
//     bound to one coil and one holding register. Any mutation marks the
//     record dirty; the dirty flag is cleared by the push pass.
//   - Sensors: a triggered flag with an edge-detected changed flag, bound to
//     one discrete input and configured with the object kind it detects.
//
// The Bridge runs once per simulation tick, pushing local changes out to the
// registers first and then pulling external register writes back in, so a
// value just exported is never immediately re-imported. Bank lock contention
// skips the affected pass for the tick; it is retried on the next tick.
//
// Equipment and sensor records are owned by the tick loop: all mutation
// happens from the simulation goroutine. The register store provides the only
// synchronization with the protocol server.
package plant

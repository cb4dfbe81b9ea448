// Package register implements the process-wide register store shared between
// the Modbus TCP server and the plant synchronization bridge.
//
// The store holds four independent address spaces following the Modbus data
// model: coils and discrete inputs (single bits), input and holding registers
// (16-bit words). Every address space is sparse: an address must be explicitly
// provisioned before it can be read or written, and an unprovisioned address
// is absent rather than zero-valued.
//
// All reads and writes validate the complete address range before touching any
// cell, so a failed operation never leaves a partial write behind. Each bank is
// guarded by its own mutex; operations are O(range size) with no I/O under the
// lock, keeping contention between the network side and the tick loop brief.
package register

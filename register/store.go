package register

import "sync"

// Bank is a single sparse address space mapping 16-bit addresses to values of
// type V. Addresses must be provisioned before use and are never removed once
// provisioned, so a provisioned address keeps its type for the process
// lifetime.
//
// Bank is safe for concurrent use. The Try variants fail fast instead of
// blocking when the bank mutex is held, which lets the synchronization bridge
// skip a pass for one tick rather than stall behind a slow peer.
type Bank[V comparable] struct {
	mu    sync.Mutex
	cells map[uint16]V
}

func newBank[V comparable]() *Bank[V] {
	return &Bank[V]{cells: make(map[uint16]V)}
}

// Provision registers addr with an initial value. It is meant to be called
// once per address at setup time; provisioning the same address twice returns
// ErrAlreadyProvisioned.
func (b *Bank[V]) Provision(addr uint16, initial V) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.cells[addr]; ok {
		return ErrAlreadyProvisioned
	}
	b.cells[addr] = initial

	return nil
}

// Read returns the values of the count addresses starting at addr.
// If any address in [addr, addr+count) is unprovisioned, it returns
// ErrIllegalDataAddress and no values.
func (b *Bank[V]) Read(addr uint16, count uint16) ([]V, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.readLocked(addr, count)
}

// Write stores values starting at addr. If any address in the target range is
// unprovisioned, it returns ErrIllegalDataAddress and leaves the bank
// unchanged.
func (b *Bank[V]) Write(addr uint16, values []V) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.writeLocked(addr, values)
}

// TryRead behaves like Read but gives up immediately when the bank mutex is
// contended. The second return value reports whether the lock was acquired.
func (b *Bank[V]) TryRead(addr uint16, count uint16) ([]V, bool, error) {
	if !b.mu.TryLock() {
		return nil, false, nil
	}
	defer b.mu.Unlock()

	values, err := b.readLocked(addr, count)

	return values, true, err
}

// TryWrite behaves like Write but gives up immediately when the bank mutex is
// contended. The first return value reports whether the lock was acquired.
func (b *Bank[V]) TryWrite(addr uint16, values []V) (bool, error) {
	if !b.mu.TryLock() {
		return false, nil
	}
	defer b.mu.Unlock()

	return true, b.writeLocked(addr, values)
}

// Get returns the value at a single provisioned address.
func (b *Bank[V]) Get(addr uint16) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.cells[addr]

	return v, ok
}

// Size returns the number of provisioned addresses.
func (b *Bank[V]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.cells)
}

// Addresses returns all provisioned addresses in unspecified order.
func (b *Bank[V]) Addresses() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	addrs := make([]uint16, 0, len(b.cells))
	for addr := range b.cells {
		addrs = append(addrs, addr)
	}

	return addrs
}

func (b *Bank[V]) readLocked(addr uint16, count uint16) ([]V, error) {
	if err := b.validateRangeLocked(addr, count); err != nil {
		return nil, err
	}

	values := make([]V, count)
	for i := range values {
		values[i] = b.cells[addr+uint16(i)]
	}

	return values, nil
}

func (b *Bank[V]) writeLocked(addr uint16, values []V) error {
	if len(values) > 0x10000 {
		return ErrIllegalDataAddress
	}
	if err := b.validateRangeLocked(addr, uint16(len(values))); err != nil {
		return err
	}

	for i, v := range values {
		b.cells[addr+uint16(i)] = v
	}

	return nil
}

// validateRangeLocked checks that every address in [addr, addr+count) is
// provisioned before any cell is touched, giving all-or-nothing semantics per
// call. count==0 means a full 65536-address range to the uint16 arithmetic, so
// it is rejected outright.
func (b *Bank[V]) validateRangeLocked(addr uint16, count uint16) error {
	if count == 0 {
		return ErrEmptyRange
	}
	if uint32(addr)+uint32(count) > 0x10000 {
		return ErrIllegalDataAddress
	}
	for i := uint16(0); i < count; i++ {
		if _, ok := b.cells[addr+i]; !ok {
			return ErrIllegalDataAddress
		}
	}

	return nil
}

// Store bundles the four Modbus address spaces into the single source of truth
// shared by the protocol server and the simulation tick loop. It is intended
// to be created once at startup and injected into both.
type Store struct {
	Coils            *Bank[bool]
	DiscreteInputs   *Bank[bool]
	InputRegisters   *Bank[uint16]
	HoldingRegisters *Bank[uint16]
}

// NewStore creates a Store with four empty banks.
func NewStore() *Store {
	return &Store{
		Coils:            newBank[bool](),
		DiscreteInputs:   newBank[bool](),
		InputRegisters:   newBank[uint16](),
		HoldingRegisters: newBank[uint16](),
	}
}

package register

import "errors"

var (
	// ErrIllegalDataAddress indicates that at least one address in the
	// requested range has not been provisioned. It maps to the Modbus
	// IllegalDataAddress exception at the protocol layer.
	ErrIllegalDataAddress = errors.New("address range contains an unprovisioned address")

	// ErrAlreadyProvisioned indicates an attempt to provision the same
	// address twice within a bank.
	ErrAlreadyProvisioned = errors.New("address already provisioned")

	// ErrEmptyRange indicates a read or write with a zero-length range.
	ErrEmptyRange = errors.New("address range is empty")
)

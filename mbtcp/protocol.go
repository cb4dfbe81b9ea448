package mbtcp

// FunctionCode identifies a Modbus function.
type FunctionCode uint8

// Supported function codes and their address-space mapping.
const (
	FuncReadCoils              FunctionCode = 0x01 // coils, read
	FuncReadDiscreteInputs     FunctionCode = 0x02 // discrete inputs, read
	FuncReadHoldingRegisters   FunctionCode = 0x03 // holding registers, read
	FuncReadInputRegisters     FunctionCode = 0x04 // input registers, read
	FuncWriteSingleCoil        FunctionCode = 0x05 // coils, write single
	FuncWriteSingleRegister    FunctionCode = 0x06 // holding registers, write single
	FuncWriteMultipleRegisters FunctionCode = 0x10 // holding registers, write sequence
)

// exceptionFlag is set on the function code of an exception response.
const exceptionFlag uint8 = 0x80

// ExceptionCode identifies a Modbus exception response code.
type ExceptionCode uint8

const (
	// ExcIllegalFunction is returned for an unsupported function code.
	ExcIllegalFunction ExceptionCode = 0x01
	// ExcIllegalDataAddress is returned when any address in the request
	// range is unprovisioned.
	ExcIllegalDataAddress ExceptionCode = 0x02
	// ExcIllegalDataValue is returned for malformed quantities or values.
	ExcIllegalDataValue ExceptionCode = 0x03
	// ExcServerDeviceFailure is returned for internal server failures.
	ExcServerDeviceFailure ExceptionCode = 0x04
)

func (e ExceptionCode) String() string {
	switch e {
	case ExcIllegalFunction:
		return "illegal function"
	case ExcIllegalDataAddress:
		return "illegal data address"
	case ExcIllegalDataValue:
		return "illegal data value"
	case ExcServerDeviceFailure:
		return "server device failure"
	default:
		return "unknown exception"
	}
}

// Protocol limits from the Modbus application protocol specification.
const (
	mbapHeaderLength  = 7
	maxTCPFrameLength = 260

	maxReadBits      = 2000
	maxReadRegisters = 125
	maxWriteRegisters = 123

	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// pdu is a Modbus protocol data unit plus the unit identifier carried in the
// MBAP header.
type pdu struct {
	unitID       uint8
	functionCode uint8
	payload      []byte
}

// exception builds the exception response for a request PDU.
func (p *pdu) exception(code ExceptionCode) *pdu {
	return &pdu{
		unitID:       p.unitID,
		functionCode: p.functionCode | exceptionFlag,
		payload:      []byte{uint8(code)},
	}
}

// packBits packs booleans LSB-first into the byte layout used by coil and
// discrete input responses.
func packBits(values []bool) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			out[i/8] |= 1 << (i % 8)
		}
	}

	return out
}

// unpackBits expands count booleans from the packed layout produced by
// packBits.
func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := range out {
		if i/8 < len(data) {
			out[i] = data[i/8]&(1<<(i%8)) != 0
		}
	}

	return out
}

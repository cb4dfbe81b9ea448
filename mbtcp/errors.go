package mbtcp

import (
	"errors"
	"fmt"
)

var (
	// ErrServerConfigNil indicates that a nil ServerConfig was provided.
	ErrServerConfigNil = errors.New("server config is nil")

	// ErrStoreNil indicates that a nil register store was provided.
	ErrStoreNil = errors.New("register store is nil")

	// ErrServerClosed indicates that the server has been closed.
	ErrServerClosed = errors.New("server closed")

	// ErrInvalidProtocolID indicates an MBAP header with a protocol
	// identifier other than 0.
	ErrInvalidProtocolID = errors.New("invalid MBAP protocol identifier")

	// ErrInvalidFrameLength indicates an MBAP length field that is zero or
	// exceeds the maximum TCP frame length.
	ErrInvalidFrameLength = errors.New("invalid MBAP frame length")

	// ErrTxnMismatch indicates a response whose transaction identifier does
	// not match the request. Client side only.
	ErrTxnMismatch = errors.New("transaction identifier mismatch")
)

// ExceptionError is returned by the client when the server answers with a
// Modbus exception response.
type ExceptionError struct {
	Function  FunctionCode
	Exception ExceptionCode
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("exception response for function 0x%02X: %s", uint8(e.Function), e.Exception)
}

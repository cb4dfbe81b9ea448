package mbtcp

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client is a minimal Modbus TCP client covering the function codes served by
// Server. It is used by the monitor command and by the end-to-end tests.
//
// Client serializes requests: one request/response exchange is in flight at a
// time.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
	unitID  uint8
	txnID   uint16
	header  []byte
}

// Dial connects to a Modbus TCP server at address (host:port).
// The timeout applies to connecting and to every request/response exchange.
func Dial(address string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	return &Client{
		conn:    conn,
		timeout: timeout,
		unitID:  1,
		header:  make([]byte, mbapHeaderLength),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ReadCoils reads quantity coils starting at addr.
func (c *Client) ReadCoils(addr uint16, quantity uint16) ([]bool, error) {
	return c.readBits(FuncReadCoils, addr, quantity)
}

// ReadDiscreteInputs reads quantity discrete inputs starting at addr.
func (c *Client) ReadDiscreteInputs(addr uint16, quantity uint16) ([]bool, error) {
	return c.readBits(FuncReadDiscreteInputs, addr, quantity)
}

// ReadHoldingRegisters reads quantity holding registers starting at addr.
func (c *Client) ReadHoldingRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	return c.readRegisters(FuncReadHoldingRegisters, addr, quantity)
}

// ReadInputRegisters reads quantity input registers starting at addr.
func (c *Client) ReadInputRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	return c.readRegisters(FuncReadInputRegisters, addr, quantity)
}

// WriteSingleCoil writes one coil.
func (c *Client) WriteSingleCoil(addr uint16, value bool) error {
	raw := coilOff
	if value {
		raw = coilOn
	}

	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], raw)

	_, err := c.request(FuncWriteSingleCoil, payload)

	return err
}

// WriteSingleRegister writes one holding register.
func (c *Client) WriteSingleRegister(addr uint16, value uint16) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], value)

	_, err := c.request(FuncWriteSingleRegister, payload)

	return err
}

// WriteMultipleRegisters writes a sequence of holding registers starting at
// addr.
func (c *Client) WriteMultipleRegisters(addr uint16, values []uint16) error {
	if len(values) == 0 || len(values) > maxWriteRegisters {
		return fmt.Errorf("invalid register count: %d", len(values))
	}

	payload := make([]byte, 5+2*len(values))
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], uint16(len(values)))
	payload[4] = uint8(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(payload[5+2*i:], v)
	}

	_, err := c.request(FuncWriteMultipleRegisters, payload)

	return err
}

// RawRequest sends an arbitrary function code with a raw payload and returns
// the response payload. It exists for protocol-level testing of unsupported
// function codes.
func (c *Client) RawRequest(function uint8, payload []byte) ([]byte, error) {
	res, err := c.request(FunctionCode(function), payload)
	if err != nil {
		return nil, err
	}

	return res.payload, nil
}

func (c *Client) readBits(function FunctionCode, addr uint16, quantity uint16) ([]bool, error) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], quantity)

	res, err := c.request(function, payload)
	if err != nil {
		return nil, err
	}

	if len(res.payload) < 1 || len(res.payload) != 1+int(res.payload[0]) {
		return nil, fmt.Errorf("malformed read response payload")
	}

	return unpackBits(res.payload[1:], int(quantity)), nil
}

func (c *Client) readRegisters(function FunctionCode, addr uint16, quantity uint16) ([]uint16, error) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], quantity)

	res, err := c.request(function, payload)
	if err != nil {
		return nil, err
	}

	if len(res.payload) != 1+2*int(quantity) || int(res.payload[0]) != 2*int(quantity) {
		return nil, fmt.Errorf("malformed read response payload")
	}

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(res.payload[1+2*i:])
	}

	return values, nil
}

// request performs one request/response exchange and validates the response
// against the request. A Modbus exception response is returned as an
// *ExceptionError.
func (c *Client) request(function FunctionCode, payload []byte) (*pdu, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.txnID++
	req := &pdu{unitID: c.unitID, functionCode: uint8(function), payload: payload}

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := writeFrame(c.conn, c.txnID, req); err != nil {
		return nil, err
	}

	fr := &frameReader{headerTimeout: c.timeout, readTimeout: c.timeout}
	res, txnID, err := fr.ReadFrame(c.conn, c.header)
	if err != nil {
		return nil, err
	}

	if txnID != c.txnID {
		return nil, ErrTxnMismatch
	}

	if res.functionCode&exceptionFlag != 0 {
		if len(res.payload) != 1 {
			return nil, fmt.Errorf("malformed exception response")
		}

		return nil, &ExceptionError{
			Function:  FunctionCode(res.functionCode &^ exceptionFlag),
			Exception: ExceptionCode(res.payload[0]),
		}
	}

	return res, nil
}

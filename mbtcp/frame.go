package mbtcp

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/arloliu/go-plantbus/internal/pool"
)

// frameReader reads and decodes individual Modbus TCP frames from a net.Conn.
//
// It implements the MBAP framing protocol:
//  1. Read the 7-byte MBAP header (no timeout, idle connections are allowed):
//     transaction id, protocol id, length, unit id.
//  2. Validate the protocol id (must be 0) and the length field.
//  3. Set the read timeout and read the remaining PDU bytes.
//
// frameReader is NOT goroutine-safe. Each connection goroutine owns one
// frameReader, consistent with the single-reader design of a connection.
type frameReader struct {
	// headerTimeout bounds the wait for the start of a frame. Zero means no
	// deadline: the server lets connections idle indefinitely between
	// requests, while the client bounds the wait for a response.
	headerTimeout time.Duration
	readTimeout   time.Duration
}

// ReadFrame reads one complete frame from conn.
//
// headerBuf must be a scratch buffer of mbapHeaderLength bytes reused across
// calls to avoid per-frame allocations. It is overwritten on each call.
func (fr *frameReader) ReadFrame(conn net.Conn, headerBuf []byte) (*pdu, uint16, error) {
	// Phase 1: read the MBAP header.
	headerDeadline := time.Time{}
	if fr.headerTimeout > 0 {
		headerDeadline = time.Now().Add(fr.headerTimeout)
	}
	if err := conn.SetReadDeadline(headerDeadline); err != nil {
		return nil, 0, fmt.Errorf("set read deadline: %w", err)
	}

	if _, err := io.ReadFull(conn, headerBuf); err != nil {
		return nil, 0, fmt.Errorf("read MBAP header: %w", err)
	}

	txnID := binary.BigEndian.Uint16(headerBuf[0:2])
	protocolID := binary.BigEndian.Uint16(headerBuf[2:4])
	unitID := headerBuf[6]

	if protocolID != 0 {
		return nil, txnID, fmt.Errorf("%w: 0x%04X", ErrInvalidProtocolID, protocolID)
	}

	// Phase 2: validate the length field. It counts the unit id byte, which
	// is part of the header already read.
	bytesNeeded := int(binary.BigEndian.Uint16(headerBuf[4:6])) - 1
	if bytesNeeded <= 0 || bytesNeeded+mbapHeaderLength > maxTCPFrameLength {
		return nil, txnID, fmt.Errorf("%w: %d", ErrInvalidFrameLength, bytesNeeded+1)
	}

	// Phase 3: read the PDU with the configured timeout.
	if err := conn.SetReadDeadline(time.Now().Add(fr.readTimeout)); err != nil {
		return nil, txnID, fmt.Errorf("set read deadline: %w", err)
	}

	body := make([]byte, bytesNeeded)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, txnID, fmt.Errorf("read PDU: %w", err)
	}

	return &pdu{
		unitID:       unitID,
		functionCode: body[0],
		payload:      body[1:],
	}, txnID, nil
}

// frameBuffers recycles assembly buffers across written frames.
var frameBuffers = pool.NewBufferPool(maxTCPFrameLength)

// appendFrame appends a complete MBAP frame (header + PDU) to buf.
func appendFrame(buf []byte, txnID uint16, p *pdu) []byte {
	buf = append(buf, make([]byte, mbapHeaderLength)...)
	frame := buf[len(buf)-mbapHeaderLength:]
	binary.BigEndian.PutUint16(frame[0:2], txnID)
	// protocol identifier is always 0x0000
	binary.BigEndian.PutUint16(frame[4:6], uint16(2+len(p.payload)))
	frame[6] = p.unitID

	buf = append(buf, p.functionCode)
	buf = append(buf, p.payload...)

	return buf
}

// encodeFrame turns a PDU into an MBAP frame ready to be written to the wire.
func encodeFrame(txnID uint16, p *pdu) []byte {
	return appendFrame(make([]byte, 0, mbapHeaderLength+1+len(p.payload)), txnID, p)
}

// writeFrame assembles and writes one frame to conn.
func writeFrame(conn net.Conn, txnID uint16, p *pdu) error {
	buf := frameBuffers.Get()
	defer frameBuffers.Put(buf)

	*buf = appendFrame(*buf, txnID, p)
	if _, err := conn.Write(*buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

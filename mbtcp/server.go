package mbtcp

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-plantbus/internal/task"
	"github.com/arloliu/go-plantbus/logger"
	"github.com/arloliu/go-plantbus/register"
)

// Server is a Modbus TCP server exposing a register.Store to external
// clients. It binds one listening endpoint for its lifetime and serves each
// accepted connection on a dedicated goroutine.
type Server struct {
	cfg    *ServerConfig
	store  *register.Store
	logger logger.Logger

	listener      net.Listener
	listenerMutex sync.Mutex

	taskMgr  *task.Manager
	conns    *xsync.MapOf[string, net.Conn]
	shutdown atomic.Bool

	metrics ServerMetrics
}

// NewServer creates a Server with the given context, configuration, and
// register store. The store is shared with the synchronization bridge and is
// the single point of truth between the network side and the tick loop.
func NewServer(ctx context.Context, cfg *ServerConfig, store *register.Store) (*Server, error) {
	if cfg == nil {
		return nil, ErrServerConfigNil
	}
	if store == nil {
		return nil, ErrStoreNil
	}

	return &Server{
		cfg:     cfg,
		store:   store,
		logger:  cfg.logger,
		taskMgr: task.NewManager(ctx, cfg.logger),
		conns:   xsync.NewMapOf[string, net.Conn](),
	}, nil
}

// Start binds the listening endpoint and starts accepting connections.
// A bind failure is fatal to the server and returned as-is; it is not
// retried.
func (s *Server) Start() error {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(s.taskMgr.Context(), "tcp", s.cfg.ListenAddress())
	if err != nil {
		s.logger.Error("failed to listen", "address", s.cfg.ListenAddress(), "error", err)
		return err
	}
	s.listener = listener

	s.logger.Info("modbus server listening", "address", listener.Addr())

	s.taskMgr.Start("acceptConn", s.tryAcceptConn)

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Metrics returns the metrics associated with the server.
func (s *Server) Metrics() *ServerMetrics {
	return &s.metrics
}

// Close stops accepting connections, drops all live connections, and waits
// for the connection goroutines to terminate.
func (s *Server) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return ErrServerClosed
	}

	s.listenerMutex.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.listenerMutex.Unlock()

	s.conns.Range(func(id string, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})

	s.taskMgr.Stop()
	s.taskMgr.Wait()

	s.logger.Info("modbus server closed")

	return nil
}

// tryAcceptConn accepts one connection and hands it to its own goroutine.
// It returns false to terminate the accept task once the listener is closed.
func (s *Server) tryAcceptConn() bool {
	conn, err := s.listener.Accept()
	if err != nil {
		if s.shutdown.Load() || errors.Is(err, net.ErrClosed) {
			return false
		}

		s.logger.Error("failed to accept connection", "error", err)

		return true // re-accept
	}

	s.metrics.incConnAcceptCount()

	if int(s.metrics.ConnActiveGauge.Load()) >= s.cfg.MaxConnections() {
		s.logger.Warn("connection limit reached, rejecting client", "remote_address", conn.RemoteAddr())
		s.metrics.incConnRejectCount()
		_ = conn.Close()

		return true
	}

	id := uuid.NewString()
	s.conns.Store(id, conn)
	s.metrics.incConnActiveGauge()

	s.logger.Info("client connected", "conn_id", id, "remote_address", conn.RemoteAddr())

	s.startConnTask(id, conn)

	return true
}

func (s *Server) startConnTask(id string, conn net.Conn) {
	connLogger := s.logger.With("conn_id", id)
	fr := &frameReader{readTimeout: s.cfg.ReadTimeout()}
	headerBuf := make([]byte, mbapHeaderLength)

	s.taskMgr.Start("conn-"+id, func() bool {
		if s.serveOne(connLogger, conn, fr, headerBuf) {
			return true
		}

		s.dropConn(id, conn, connLogger)

		return false
	})
}

// serveOne processes a single request/response cycle. It returns false when
// the connection should be closed: remote close, framing that cannot be
// resynchronized, or a write failure. A rejected request is answered with an
// exception response and keeps the connection open.
func (s *Server) serveOne(l logger.Logger, conn net.Conn, fr *frameReader, headerBuf []byte) bool {
	req, txnID, err := fr.ReadFrame(conn, headerBuf)
	if err != nil {
		if isClosedErr(err) {
			l.Debug("client disconnected", "error", err)
		} else {
			s.metrics.incFrameErrCount()
			l.Warn("dropping connection on frame error", "error", err)
		}

		return false
	}

	s.metrics.incRequestRecvCount()

	res := s.dispatch(l, req)
	if res.functionCode&exceptionFlag != 0 {
		s.metrics.incExceptionSendCount()
	} else {
		s.metrics.incResponseSendCount()
	}

	if err := writeFrame(conn, txnID, res); err != nil {
		l.Warn("failed to write response", "error", err)
		return false
	}

	return true
}

func (s *Server) dropConn(id string, conn net.Conn, l logger.Logger) {
	_ = conn.Close()
	if _, loaded := s.conns.LoadAndDelete(id); loaded {
		s.metrics.decConnActiveGauge()
		l.Info("client connection closed")
	}
}

// dispatch routes a request PDU to the register store and builds the response
// PDU. Unsupported function codes yield an IllegalFunction exception; requests
// touching unprovisioned addresses yield IllegalDataAddress.
func (s *Server) dispatch(l logger.Logger, req *pdu) *pdu {
	switch FunctionCode(req.functionCode) {
	case FuncReadCoils:
		return s.readBits(req, s.store.Coils)
	case FuncReadDiscreteInputs:
		return s.readBits(req, s.store.DiscreteInputs)
	case FuncReadHoldingRegisters:
		return s.readRegisters(req, s.store.HoldingRegisters)
	case FuncReadInputRegisters:
		return s.readRegisters(req, s.store.InputRegisters)
	case FuncWriteSingleCoil:
		return s.writeSingleCoil(req)
	case FuncWriteSingleRegister:
		return s.writeSingleRegister(req)
	case FuncWriteMultipleRegisters:
		return s.writeMultipleRegisters(req)
	default:
		l.Warn("unsupported function code", "function", req.functionCode)
		return req.exception(ExcIllegalFunction)
	}
}

func (s *Server) readBits(req *pdu, bank *register.Bank[bool]) *pdu {
	if len(req.payload) != 4 {
		return req.exception(ExcIllegalDataValue)
	}

	addr := binary.BigEndian.Uint16(req.payload[0:2])
	quantity := binary.BigEndian.Uint16(req.payload[2:4])
	if quantity == 0 || quantity > maxReadBits {
		return req.exception(ExcIllegalDataValue)
	}

	values, err := bank.Read(addr, quantity)
	if err != nil {
		return req.exception(excFromErr(err))
	}

	bits := packBits(values)
	payload := make([]byte, 0, 1+len(bits))
	payload = append(payload, uint8(len(bits)))
	payload = append(payload, bits...)

	return &pdu{unitID: req.unitID, functionCode: req.functionCode, payload: payload}
}

func (s *Server) readRegisters(req *pdu, bank *register.Bank[uint16]) *pdu {
	if len(req.payload) != 4 {
		return req.exception(ExcIllegalDataValue)
	}

	addr := binary.BigEndian.Uint16(req.payload[0:2])
	quantity := binary.BigEndian.Uint16(req.payload[2:4])
	if quantity == 0 || quantity > maxReadRegisters {
		return req.exception(ExcIllegalDataValue)
	}

	values, err := bank.Read(addr, quantity)
	if err != nil {
		return req.exception(excFromErr(err))
	}

	payload := make([]byte, 1+2*len(values))
	payload[0] = uint8(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(payload[1+2*i:], v)
	}

	return &pdu{unitID: req.unitID, functionCode: req.functionCode, payload: payload}
}

func (s *Server) writeSingleCoil(req *pdu) *pdu {
	if len(req.payload) != 4 {
		return req.exception(ExcIllegalDataValue)
	}

	addr := binary.BigEndian.Uint16(req.payload[0:2])
	raw := binary.BigEndian.Uint16(req.payload[2:4])
	if raw != coilOn && raw != coilOff {
		return req.exception(ExcIllegalDataValue)
	}

	if err := s.store.Coils.Write(addr, []bool{raw == coilOn}); err != nil {
		return req.exception(excFromErr(err))
	}

	// the normal response echoes the request
	return &pdu{unitID: req.unitID, functionCode: req.functionCode, payload: req.payload}
}

func (s *Server) writeSingleRegister(req *pdu) *pdu {
	if len(req.payload) != 4 {
		return req.exception(ExcIllegalDataValue)
	}

	addr := binary.BigEndian.Uint16(req.payload[0:2])
	value := binary.BigEndian.Uint16(req.payload[2:4])

	if err := s.store.HoldingRegisters.Write(addr, []uint16{value}); err != nil {
		return req.exception(excFromErr(err))
	}

	return &pdu{unitID: req.unitID, functionCode: req.functionCode, payload: req.payload}
}

func (s *Server) writeMultipleRegisters(req *pdu) *pdu {
	if len(req.payload) < 5 {
		return req.exception(ExcIllegalDataValue)
	}

	addr := binary.BigEndian.Uint16(req.payload[0:2])
	quantity := binary.BigEndian.Uint16(req.payload[2:4])
	byteCount := int(req.payload[4])

	if quantity == 0 || quantity > maxWriteRegisters ||
		byteCount != 2*int(quantity) || len(req.payload) != 5+byteCount {
		return req.exception(ExcIllegalDataValue)
	}

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(req.payload[5+2*i:])
	}

	if err := s.store.HoldingRegisters.Write(addr, values); err != nil {
		return req.exception(excFromErr(err))
	}

	return &pdu{unitID: req.unitID, functionCode: req.functionCode, payload: req.payload[0:4]}
}

func excFromErr(err error) ExceptionCode {
	switch {
	case errors.Is(err, register.ErrIllegalDataAddress):
		return ExcIllegalDataAddress
	case errors.Is(err, register.ErrEmptyRange):
		return ExcIllegalDataValue
	default:
		return ExcServerDeviceFailure
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

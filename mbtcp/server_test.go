package mbtcp

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-plantbus/register"
)

func startTestServer(t *testing.T, store *register.Store, opts ...ServerOption) *Server {
	t.Helper()
	require := require.New(t)

	cfg, err := NewServerConfig("127.0.0.1", 0, opts...)
	require.NoError(err)

	srv, err := NewServer(context.Background(), cfg, store)
	require.NoError(err)
	require.NoError(srv.Start())

	t.Cleanup(func() { _ = srv.Close() })

	return srv
}

func dialTestServer(t *testing.T, srv *Server) *Client {
	t.Helper()

	client, err := Dial(srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func newProvisionedStore(t *testing.T) *register.Store {
	t.Helper()
	require := require.New(t)

	store := register.NewStore()
	require.NoError(store.Coils.Provision(0x0000, true))
	require.NoError(store.Coils.Provision(0x0001, false))
	require.NoError(store.DiscreteInputs.Provision(0x0000, false))
	require.NoError(store.DiscreteInputs.Provision(0x0001, true))
	require.NoError(store.InputRegisters.Provision(0x0000, 111))
	require.NoError(store.InputRegisters.Provision(0x0001, 222))
	for i, v := range []uint16{1, 2, 3, 4} {
		require.NoError(store.HoldingRegisters.Provision(0x0010+uint16(i), v))
	}

	return store
}

func TestServerReadWrite(t *testing.T) {
	store := newProvisionedStore(t)
	srv := startTestServer(t, store)
	client := dialTestServer(t, srv)

	t.Run("read coils", func(t *testing.T) {
		values, err := client.ReadCoils(0x0000, 2)
		require.NoError(t, err)
		require.Equal(t, []bool{true, false}, values)
	})

	t.Run("write single coil", func(t *testing.T) {
		require := require.New(t)

		require.NoError(client.WriteSingleCoil(0x0001, true))

		values, err := client.ReadCoils(0x0000, 2)
		require.NoError(err)
		require.Equal([]bool{true, true}, values)
	})

	t.Run("read discrete inputs", func(t *testing.T) {
		values, err := client.ReadDiscreteInputs(0x0000, 2)
		require.NoError(t, err)
		require.Equal(t, []bool{false, true}, values)
	})

	t.Run("read input registers", func(t *testing.T) {
		values, err := client.ReadInputRegisters(0x0000, 2)
		require.NoError(t, err)
		require.Equal(t, []uint16{111, 222}, values)
	})

	t.Run("write single register", func(t *testing.T) {
		require := require.New(t)

		require.NoError(client.WriteSingleRegister(0x0011, 0xBEEF))

		values, err := client.ReadHoldingRegisters(0x0011, 1)
		require.NoError(err)
		require.Equal([]uint16{0xBEEF}, values)
	})

	t.Run("write multiple registers", func(t *testing.T) {
		require := require.New(t)

		require.NoError(client.WriteMultipleRegisters(0x0010, []uint16{10, 20, 30, 40}))

		values, err := client.ReadHoldingRegisters(0x0010, 4)
		require.NoError(err)
		require.Equal([]uint16{10, 20, 30, 40}, values)
	})
}

func TestServerExceptions(t *testing.T) {
	store := newProvisionedStore(t)
	srv := startTestServer(t, store)
	client := dialTestServer(t, srv)

	requireException := func(t *testing.T, err error, code ExceptionCode) {
		t.Helper()

		var excErr *ExceptionError
		require.ErrorAs(t, err, &excErr)
		require.Equal(t, code, excErr.Exception)
	}

	t.Run("unsupported function code", func(t *testing.T) {
		_, err := client.RawRequest(0x2B, []byte{0x0E, 0x01, 0x00})
		requireException(t, err, ExcIllegalFunction)
	})

	t.Run("unprovisioned read range", func(t *testing.T) {
		// the range straddles provisioned and unprovisioned addresses
		_, err := client.ReadHoldingRegisters(0x0010, 8)
		requireException(t, err, ExcIllegalDataAddress)
	})

	t.Run("unprovisioned write leaves no trace", func(t *testing.T) {
		require := require.New(t)

		err := client.WriteMultipleRegisters(0x0012, []uint16{7, 8, 9})
		requireException(t, err, ExcIllegalDataAddress)

		// the provisioned prefix of the rejected range is untouched
		values, err := client.ReadHoldingRegisters(0x0010, 4)
		require.NoError(err)
		require.Equal([]uint16{1, 2, 3, 4}, values)
	})

	t.Run("invalid coil value", func(t *testing.T) {
		payload := make([]byte, 4)
		binary.BigEndian.PutUint16(payload[2:4], 0x1234)

		_, err := client.RawRequest(uint8(FuncWriteSingleCoil), payload)
		requireException(t, err, ExcIllegalDataValue)
	})

	t.Run("zero read quantity", func(t *testing.T) {
		_, err := client.RawRequest(uint8(FuncReadHoldingRegisters), []byte{0x00, 0x10, 0x00, 0x00})
		requireException(t, err, ExcIllegalDataValue)
	})

	t.Run("oversized read quantity", func(t *testing.T) {
		_, err := client.RawRequest(uint8(FuncReadHoldingRegisters), []byte{0x00, 0x00, 0x00, 0x7E})
		requireException(t, err, ExcIllegalDataValue)
	})

	t.Run("connection survives exception responses", func(t *testing.T) {
		values, err := client.ReadInputRegisters(0x0000, 2)
		require.NoError(t, err)
		require.Equal(t, []uint16{111, 222}, values)
	})
}

func TestServerMetrics(t *testing.T) {
	require := require.New(t)

	store := newProvisionedStore(t)
	srv := startTestServer(t, store)
	client := dialTestServer(t, srv)

	_, err := client.ReadCoils(0x0000, 2)
	require.NoError(err)
	_, err = client.ReadHoldingRegisters(0xFF00, 1)
	require.Error(err)

	metrics := srv.Metrics()
	require.Eventually(func() bool {
		return metrics.RequestRecvCount.Load() == 2 &&
			metrics.ResponseSendCount.Load() == 1 &&
			metrics.ExceptionSendCount.Load() == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(uint64(1), metrics.ConnAcceptCount.Load())
	require.Equal(int64(1), metrics.ConnActiveGauge.Load())

	require.NoError(client.Close())
	require.Eventually(func() bool {
		return metrics.ConnActiveGauge.Load() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestServerMaxConnections(t *testing.T) {
	require := require.New(t)

	store := newProvisionedStore(t)
	srv := startTestServer(t, store, WithMaxConnections(1))

	first := dialTestServer(t, srv)
	_, err := first.ReadCoils(0x0000, 1)
	require.NoError(err)

	// the second connection is accepted and immediately closed
	second := dialTestServer(t, srv)
	_, err = second.ReadCoils(0x0000, 1)
	require.Error(err)

	require.Eventually(func() bool {
		return srv.Metrics().ConnRejectCount.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// the first connection keeps working
	_, err = first.ReadCoils(0x0000, 1)
	require.NoError(err)
}

func TestServerClose(t *testing.T) {
	require := require.New(t)

	store := newProvisionedStore(t)
	srv := startTestServer(t, store)
	client := dialTestServer(t, srv)

	_, err := client.ReadCoils(0x0000, 1)
	require.NoError(err)

	require.NoError(srv.Close())
	require.ErrorIs(srv.Close(), ErrServerClosed)

	_, err = client.ReadCoils(0x0000, 1)
	require.Error(err)
}

func TestServerStoreSharing(t *testing.T) {
	require := require.New(t)

	store := newProvisionedStore(t)
	srv := startTestServer(t, store)
	client := dialTestServer(t, srv)

	// writes from the network side land in the shared store
	require.NoError(client.WriteSingleCoil(0x0000, false))
	values, err := store.Coils.Read(0x0000, 1)
	require.NoError(err)
	require.Equal([]bool{false}, values)

	// and writes from the process side are visible to clients
	require.NoError(store.InputRegisters.Write(0x0001, []uint16{999}))
	regs, err := client.ReadInputRegisters(0x0001, 1)
	require.NoError(err)
	require.Equal([]uint16{999}, regs)
}

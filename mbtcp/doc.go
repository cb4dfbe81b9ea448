// Package mbtcp implements a Modbus TCP server and a small client on top of
// the register store.
//
// Key features:
//   - Server: binds one listening endpoint for its lifetime and serves each
//     accepted connection on its own goroutine, so a slow or malformed client
//     never blocks others or the simulation tick loop.
//   - Framing: MBAP header (transaction id, protocol id 0, length, unit id)
//     followed by a PDU (function code + payload), read with io.ReadFull.
//   - Dispatch: the seven supported function codes operate on the injected
//     register.Store; any other code is answered with an IllegalFunction
//     exception, and a request touching an unprovisioned address with
//     IllegalDataAddress. Exception responses never terminate the connection.
//   - Client: covers the same seven functions for tooling and tests.
//
// Connection establishment:
//   - Create a ServerConfig with NewServerConfig(host, port, opts...).
//   - Create the server with NewServer and call Start; a bind failure is
//     returned as a fatal error and is not retried.
//   - Call Close to stop accepting and drop all live connections.
package mbtcp

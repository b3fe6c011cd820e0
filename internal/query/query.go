// Package query answers "which port is the backend on?" for the UI layer.
package query

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned while no port has been discovered yet.
// Callers are expected to retry later.
var ErrNotReady = errors.New("server not ready")

// PortReader is the read side of the shared port cell.
type PortReader interface {
	Get() (uint16, bool)
}

// Endpoint is a read-only view over the discovered port. It never blocks
// and is safe for concurrent use.
type Endpoint struct {
	cell PortReader
	host string
}

// NewEndpoint creates an endpoint over cell. URLs are built against host.
func NewEndpoint(cell PortReader, host string) *Endpoint {
	return &Endpoint{cell: cell, host: host}
}

// GetPort returns the discovered port or ErrNotReady.
func (e *Endpoint) GetPort() (uint16, error) {
	port, ok := e.cell.Get()
	if !ok {
		return 0, ErrNotReady
	}
	return port, nil
}

// URL returns the backend base URL or ErrNotReady.
func (e *Endpoint) URL() (string, error) {
	port, err := e.GetPort()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", e.host, port), nil
}

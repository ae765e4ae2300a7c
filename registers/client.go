package registers

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// TCPClient is a single Modbus TCP connection to the export target.
// It serializes requests because it mutates SlaveId per write.
// The connection is opened on first use and re-opened after failures.
type TCPClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewTCPClient(cfg Config) (*TCPClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("registers: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	return &TCPClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *TCPClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID

	qty := uint16(len(regs))
	payload := packRegisters(regs)

	if _, err := c.client.WriteMultipleRegisters(addr, qty, payload); err != nil {
		// Drop the connection so the next write dials again.
		_ = c.handler.Close()
		return err
	}
	return nil
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

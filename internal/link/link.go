// Package link owns the serial device connection: open, read lines,
// detect failure, reconnect. Failures are never fatal; the manager
// retries until the context is cancelled.
package link

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"codeberg.org/mutker/ironmon/internal/errors"
	"codeberg.org/mutker/ironmon/internal/logger"
	"github.com/tarm/serial"
)

// State names one phase of the connection lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateStreaming    State = "streaming"
)

// Port is an open byte stream to the device. tarm/serial ports satisfy
// it; tests substitute fakes.
type Port interface {
	io.ReadCloser
}

// Opener attempts to open the device once. A failed attempt returns a
// retryable error; the manager never treats it as fatal.
type Opener func() (Port, error)

// SerialOpener opens a serial port by name at a fixed baud rate.
func SerialOpener(name string, baud int) Opener {
	return func() (Port, error) {
		port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
		if err != nil {
			return nil, errors.New().Wrap(ErrDeviceUnavailable, err)
		}
		return port, nil
	}
}

// Manager holds the exclusive handle to the device and hands out one
// logical line at a time. Only one Manager may own a physical port.
type Manager struct {
	opener Opener

	mu     sync.Mutex
	port   Port
	reader *bufio.Reader
	state  State
	epoch  uint64
}

func NewManager(opener Opener) *Manager {
	return &Manager{
		opener: opener,
		state:  StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Epoch returns the identifier of the current connection span. It
// increments on every successful open, so samples read after a
// reconnect are distinguishable from those before it.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Connect attempts a single open. On success the manager transitions
// to streaming and a new epoch begins.
func (m *Manager) Connect() error {
	m.setState(StateConnecting)

	port, err := m.opener()
	if err != nil {
		m.setState(StateDisconnected)
		return err
	}

	m.mu.Lock()
	m.port = port
	m.reader = bufio.NewReader(port)
	m.epoch++
	m.state = StateStreaming
	epoch := m.epoch
	m.mu.Unlock()

	logger.Info().Uint64("epoch", epoch).Msg("Device connected")

	return nil
}

// ReadLine blocks until a newline-terminated record arrives, returning
// it with the terminator stripped. Any read failure closes the port
// and reports a broken link.
func (m *Manager) ReadLine() ([]byte, error) {
	m.mu.Lock()
	reader := m.reader
	m.mu.Unlock()

	if reader == nil {
		return nil, errors.New().New(ErrLinkBroken)
	}

	line, err := reader.ReadBytes('\n')
	if err != nil {
		m.Close()
		return nil, errors.New().Wrap(ErrLinkBroken, err)
	}

	line = bytes.TrimRight(line, "\r\n")

	return line, nil
}

// Close releases the device handle and transitions to disconnected.
// Safe to call from another goroutine to abandon a blocking read.
func (m *Manager) Close() error {
	m.mu.Lock()
	port := m.port
	m.port = nil
	m.reader = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if port == nil {
		return nil
	}

	if err := port.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

// Run keeps the link alive until the context is cancelled: connect
// (retrying immediately, no backoff), then stream lines to onLine.
// onConnect fires once per successful open with the new epoch, before
// any line from that connection is delivered.
func (m *Manager) Run(ctx context.Context, onConnect func(epoch uint64), onLine func(line []byte)) error {
	// Close the port when the context ends so a blocking read returns.
	go func() {
		<-ctx.Done()
		m.Close()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := m.Connect(); err != nil {
			logger.Debug().Err(err).Msg("Device unavailable, retrying")
			continue
		}

		if ctx.Err() != nil {
			m.Close()
			return nil
		}

		if onConnect != nil {
			onConnect(m.Epoch())
		}

		m.stream(ctx, onLine)
	}
}

func (m *Manager) stream(ctx context.Context, onLine func(line []byte)) {
	for {
		line, err := m.ReadLine()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn().Err(err).Msg("Link broken, reconnecting")
			}
			return
		}

		onLine(line)
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	prev := m.state
	m.state = state
	m.mu.Unlock()

	if prev != state {
		logger.Debug().
			Str("from", string(prev)).
			Str("to", string(state)).
			Msg("Link state changed")
	}
}

package acquire_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/ironmon/internal/acquire"
	"codeberg.org/mutker/ironmon/internal/decode"
	"codeberg.org/mutker/ironmon/internal/history"
	"codeberg.org/mutker/ironmon/internal/link"
	"codeberg.org/mutker/ironmon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort feeds scripted bytes, then blocks until closed.
type fakePort struct {
	mu      sync.Mutex
	data    []byte
	eof     bool
	closed  bool
	blockCh chan struct{}
}

func newFakePort(data string, eof bool) *fakePort {
	return &fakePort{data: []byte(data), eof: eof, blockCh: make(chan struct{})}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if len(p.data) > 0 {
		n := copy(buf, p.data)
		p.data = p.data[n:]
		p.mu.Unlock()
		return n, nil
	}
	eof, closed := p.eof, p.closed
	p.mu.Unlock()

	if eof || closed {
		return 0, io.EOF
	}

	<-p.blockCh
	return 0, io.EOF
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.blockCh)
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPipelinePushesDecodedSamples(t *testing.T) {
	// Two samples plus one malformed line that must be dropped
	port := newFakePort("C02055\njunk\nA01000\nV06000\nC02060\n", false)
	mgr := link.NewManager(func() (link.Port, error) { return port, nil })

	store, err := history.New(16)
	require.NoError(t, err)

	capture, err := telemetry.NewService(telemetry.Config{Enabled: false})
	require.NoError(t, err)

	svc := acquire.NewService(mgr, decode.New(decode.ProtocolLegacy), store, capture)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()

	waitFor(t, func() bool { return svc.Accepted() == 2 })

	cancel()
	<-done

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	assert.InDelta(t, 20.55, snap[0].Temperature, 1e-9)
	assert.InDelta(t, 20.60, snap[1].Temperature, 1e-9)
	assert.InDelta(t, 6.0, snap[1].Power, 1e-9)
	assert.Equal(t, uint64(1), svc.Rejected())
}

func TestPipelineResetsTimeBasisOnReconnect(t *testing.T) {
	first := newFakePort("0205000600\n0205100610\n", true)
	second := newFakePort("0206000620\n", false)

	var mu sync.Mutex
	ports := []*fakePort{first, second}
	mgr := link.NewManager(func() (link.Port, error) {
		mu.Lock()
		defer mu.Unlock()
		p := ports[0]
		if len(ports) > 1 {
			ports = ports[1:]
		}
		return p, nil
	})

	store, err := history.New(16)
	require.NoError(t, err)

	capture, err := telemetry.NewService(telemetry.Config{Enabled: false})
	require.NoError(t, err)

	// A scripted clock that leaps one minute per reading, so samples
	// from the first epoch accumulate visible elapsed time.
	now := time.Unix(0, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}

	svc := acquire.NewService(mgr, decode.NewWithClock(decode.ProtocolCombined, clock), store, capture)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()

	waitFor(t, func() bool { return svc.Accepted() == 3 })

	cancel()
	<-done

	snap := store.Snapshot()
	require.Len(t, snap, 3)

	// Old-epoch samples remain visible until evicted
	assert.Equal(t, uint64(1), snap[0].Epoch)
	assert.Equal(t, uint64(1), snap[1].Epoch)
	assert.Equal(t, uint64(2), snap[2].Epoch)

	// Time basis restarts after the reconnect
	assert.Less(t, snap[2].Elapsed, snap[1].Elapsed)
	assert.Greater(t, snap[1].Elapsed, snap[0].Elapsed)
}

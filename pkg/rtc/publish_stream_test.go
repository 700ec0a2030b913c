package rtc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/require"

	"github.com/srs-core/mediacore/pkg/circuitbreaker"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent [][]rtcp.Packet
	done chan struct{}
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{done: make(chan struct{}, 64)}
}

func (r *recordingTransport) SendRTCP(pkts []rtcp.Packet) error {
	r.mu.Lock()
	r.sent = append(r.sent, pkts)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestPublishStreamRTCPTimerGatedBySenderStarted(t *testing.T) {
	transport := newRecordingTransport()
	ps := NewPublishStream(context.Background(), testLogger(t), 1001, transport, nil, nil)
	ps.AddTrack(&TrackDescription{SSRC: 2002})
	ps.Start()
	defer ps.Stop()

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 0, transport.count(), "RR/XR must not fire before sender starts")

	ps.SetSenderStarted(true)
	select {
	case <-transport.done:
	case <-time.After(2 * time.Second):
		t.Fatal("RR/XR did not fire after sender started")
	}
}

func TestPublishStreamTWCCGatedByCircuitBreaker(t *testing.T) {
	transport := newRecordingTransport()
	breaker := circuitbreaker.New()
	breaker.SetLevel(circuitbreaker.LevelCritical)

	ps := NewPublishStream(context.Background(), testLogger(t), 1001, transport, nil, breaker)
	ps.AddTrack(&TrackDescription{SSRC: 2002})
	ps.SetSenderStarted(true)
	ps.SetTWCCEnabled(true)
	require.NoError(t, ps.OnTWCC(2002, 1, 1_000_000))
	ps.Start()
	defer ps.Stop()

	// RR/XR ticks at ~100ms and ~200ms give two sends within 250ms; the bound
	// of 3 leaves one send of slack for timer jitter. With the breaker
	// critical, TWCC must never contribute an additional send.
	time.Sleep(250 * time.Millisecond)
	require.LessOrEqual(t, transport.count(), 3, "TWCC feedback must not fire while circuit breaker is critical")
	require.GreaterOrEqual(t, transport.count(), 1, "RR/XR must still fire")
}

func TestPublishStreamOnTWCCRejectsDuplicates(t *testing.T) {
	ps := NewPublishStream(context.Background(), testLogger(t), 1001, newRecordingTransport(), nil, nil)
	require.NoError(t, ps.OnTWCC(2002, 5, 1000))
	require.Error(t, ps.OnTWCC(2002, 5, 2000))
}

package rtc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func mkPacedPacket(seq uint16, ts uint32) *PacedPacket {
	return &PacedPacket{
		Packet: &RtpPacket{Header: rtp.Header{SequenceNumber: seq, Timestamp: ts}},
		Timestamp: ts,
	}
}

func TestPacerSendsFirstPacketImmediately(t *testing.T) {
	var mu sync.Mutex
	var sent []uint16
	write := func(p *RtpPacket) error {
		mu.Lock()
		sent = append(sent, p.SequenceNumber())
		mu.Unlock()
		return nil
	}

	p := NewPacer(context.Background(), testLogger(t), VideoClockRateHz, write)
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Enqueue(mkPacedPacket(1, 0)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sent) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPacerPacesSubsequentPacketsByTimestampDelta(t *testing.T) {
	var mu sync.Mutex
	var sentAt []time.Time
	write := func(p *RtpPacket) error {
		mu.Lock()
		sentAt = append(sentAt, time.Now())
		mu.Unlock()
		return nil
	}

	p := NewPacer(context.Background(), testLogger(t), VideoClockRateHz, write)
	p.Start()
	defer p.Stop()

	// 9000 RTP ticks at 90kHz == 100ms of nominal spacing.
	require.NoError(t, p.Enqueue(mkPacedPacket(1, 0)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sentAt) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Enqueue(mkPacedPacket(2, 9000)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sentAt) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	gap := sentAt[1].Sub(sentAt[0])
	mu.Unlock()
	require.GreaterOrEqual(t, gap, 60*time.Millisecond)
}

func TestPacerCapsExcessiveDelay(t *testing.T) {
	var mu sync.Mutex
	count := 0
	write := func(p *RtpPacket) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}

	p := NewPacer(context.Background(), testLogger(t), VideoClockRateHz, write)
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Enqueue(mkPacedPacket(1, 0)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	// A huge timestamp jump would imply minutes of delay; maxPacketDelay
	// bounds it to 200ms so the test completes quickly.
	start := time.Now()
	require.NoError(t, p.Enqueue(mkPacedPacket(2, 90000*60)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, 2*time.Second, 5*time.Millisecond)
	require.Less(t, time.Since(start), time.Second)
}

package rtc

import (
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func mkAudioPkt(seq uint16) *RtpPacket {
	return &RtpPacket{
		Header: rtp.Header{SequenceNumber: seq},
		Frame:  FrameAudio,
		Tag:    PayloadOpus,
	}
}

func seqsOf(pkts []*RtpPacket) []uint16 {
	out := make([]uint16, len(pkts))
	for i, p := range pkts {
		out[i] = p.SequenceNumber()
	}
	return out
}

// TestAudioJitterBufferInOrderPassThrough verifies packets arriving already
// in order are released immediately, one per call (spec §4.5 step 4: "no
// gap" satisfies the release condition without waiting).
func TestAudioJitterBufferInOrderPassThrough(t *testing.T) {
	b := NewAudioJitterBuffer()
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	for seq := uint16(1); seq <= 3; seq++ {
		ready := b.ProcessPacket(mkAudioPkt(seq))
		require.Equal(t, []uint16{seq}, seqsOf(ready))
	}
	require.Zero(t, b.Len())
}

// TestAudioJitterBufferReordersWithinWindow verifies an out-of-order arrival
// is held and then released in sequence once the gap fills.
func TestAudioJitterBufferReordersWithinWindow(t *testing.T) {
	b := NewAudioJitterBuffer()
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	ready := b.ProcessPacket(mkAudioPkt(1))
	require.Equal(t, []uint16{1}, seqsOf(ready))

	ready = b.ProcessPacket(mkAudioPkt(3))
	require.Empty(t, ready, "3 arrives before 2; must wait for the gap")
	require.Equal(t, 1, b.Len())

	ready = b.ProcessPacket(mkAudioPkt(2))
	require.Equal(t, []uint16{2, 3}, seqsOf(ready))
	require.Zero(t, b.Len())
}

// TestAudioJitterBufferLatePacketDiscarded verifies a packet older than the
// last delivered sequence number is dropped rather than buffered.
func TestAudioJitterBufferLatePacketDiscarded(t *testing.T) {
	b := NewAudioJitterBuffer()
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	ready := b.ProcessPacket(mkAudioPkt(5))
	require.Equal(t, []uint16{5}, seqsOf(ready))

	ready = b.ProcessPacket(mkAudioPkt(3))
	require.Empty(t, ready)
	require.Zero(t, b.Len())
}

// TestAudioJitterBufferWaitTimeoutForcesDelivery verifies a persistent gap is
// abandoned once WaitTimeout has elapsed since the oldest buffered packet
// arrived, delivering what's available out of strict order.
func TestAudioJitterBufferWaitTimeoutForcesDelivery(t *testing.T) {
	b := NewAudioJitterBuffer()
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	ready := b.ProcessPacket(mkAudioPkt(1))
	require.Equal(t, []uint16{1}, seqsOf(ready))

	ready = b.ProcessPacket(mkAudioPkt(3)) // 2 never arrives
	require.Empty(t, ready)

	clock = clock.Add(DefaultAudioWaitTimeout)
	ready = b.ProcessPacket(mkAudioPkt(4))
	require.Equal(t, []uint16{3, 4}, seqsOf(ready))
}

// TestAudioJitterBufferCapacityForcesDelivery verifies the buffer empties
// once it reaches Capacity, even with gaps and no elapsed timeout.
func TestAudioJitterBufferCapacityForcesDelivery(t *testing.T) {
	b := NewAudioJitterBuffer()
	b.Capacity = 2
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	ready := b.ProcessPacket(mkAudioPkt(10))
	require.Equal(t, []uint16{10}, seqsOf(ready))

	ready = b.ProcessPacket(mkAudioPkt(20)) // gap, no timeout elapsed
	require.Empty(t, ready)

	ready = b.ProcessPacket(mkAudioPkt(21)) // buffer now at capacity
	require.Equal(t, []uint16{20, 21}, seqsOf(ready))
}

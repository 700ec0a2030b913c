package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func mkSendTrack(t *testing.T, ssrc uint32) *SendTrack {
	var sent []*RtpPacket
	write := func(p *RtpPacket) error {
		sent = append(sent, p)
		return nil
	}
	pacer := NewPacer(context.Background(), testLogger(t), VideoClockRateHz, write)
	pacer.Start()
	t.Cleanup(pacer.Stop)
	return &SendTrack{
		Desc:       &TrackDescription{SSRC: ssrc},
		Retransmit: NewRtpRingBuffer(8),
		Pacer:      pacer,
		Active:     true,
	}
}

func TestPlayStreamNackResendsBufferedPacket(t *testing.T) {
	track := mkSendTrack(t, 2002)
	track.Retransmit.Store(&RtpPacket{Header: rtp.Header{SequenceNumber: 50, SSRC: 2002}})

	ps := NewPlayStream(testLogger(t))
	ps.AddTrack(track)

	nack := &rtcp.TransportLayerNack{
		SenderSSRC: 1001,
		MediaSSRC:  2002,
		Nacks:      rtcp.NackPairsFromSequenceNumbers([]uint16{50}),
	}
	require.NoError(t, ps.OnRTCP(nack))
}

func TestPlayStreamNackForUnknownSSRCFails(t *testing.T) {
	ps := NewPlayStream(testLogger(t))
	nack := &rtcp.TransportLayerNack{MediaSSRC: 9999}
	require.Error(t, ps.OnRTCP(nack))
}

func TestPlayStreamNackOnDisabledTrackFails(t *testing.T) {
	track := mkSendTrack(t, 2002)
	track.Active = false
	ps := NewPlayStream(testLogger(t))
	ps.AddTrack(track)

	nack := &rtcp.TransportLayerNack{MediaSSRC: 2002}
	require.Error(t, ps.OnRTCP(nack))
}

func TestPlayStreamGoodbyeDeactivatesTrack(t *testing.T) {
	track := mkSendTrack(t, 2002)
	ps := NewPlayStream(testLogger(t))
	ps.AddTrack(track)

	require.NoError(t, ps.OnRTCP(&rtcp.Goodbye{Sources: []uint32{2002}}))
	require.False(t, track.Active)

	// Now a NACK on the same track must fail.
	require.Error(t, ps.OnRTCP(&rtcp.TransportLayerNack{MediaSSRC: 2002}))
}

func TestPlayStreamUnknownRTCPTypeIgnored(t *testing.T) {
	ps := NewPlayStream(testLogger(t))
	require.NoError(t, ps.OnRTCP(&rtcp.SenderReport{}))
}

func TestSendTrackSendStoresAndPaces(t *testing.T) {
	track := mkSendTrack(t, 2002)
	pkt := &RtpPacket{Header: rtp.Header{SequenceNumber: 10, SSRC: 2002}}
	require.NoError(t, track.Send(pkt))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, pkt, track.Retransmit.FetchRtpPacket(10))
}

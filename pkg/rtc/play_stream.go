package rtc

import (
	"sync"

	"github.com/pion/rtcp"

	"github.com/srs-core/mediacore/pkg/errs"
	"github.com/srs-core/mediacore/pkg/logger"
)

// SendTrack is one SSRC's send-side bookkeeping: the retransmission buffer
// NACK dispatch resends from, and the Pacer smoothing its outgoing
// timing (spec §4.9 PlayStream send tracks).
type SendTrack struct {
	Desc       *TrackDescription
	Retransmit *RtpRingBuffer
	Pacer      *Pacer
	Active     bool
}

// Send writes pkt through this track's pacer and records it in the
// retransmission buffer so a later NACK can recover it.
func (t *SendTrack) Send(pkt *RtpPacket) error {
	t.Retransmit.Store(pkt)
	return t.Pacer.Enqueue(&PacedPacket{Packet: pkt, Timestamp: pkt.Header.Timestamp})
}

// OnRecvNack walks the retransmission buffer for each requested sequence
// number and resends whatever is found, per spec §4.9 "walks the
// retransmission buffer and resends matched packets". Sequence numbers no
// longer in the buffer are silently skipped, matching SRS's tolerant NACK
// handling of already-evicted packets.
func (t *SendTrack) OnRecvNack(lostSeqs []uint16) error {
	if !t.Active {
		return errs.New(errs.KindRTPMuxer, "nack on disabled track")
	}
	for _, seq := range lostSeqs {
		pkt := t.Retransmit.FetchRtpPacket(seq)
		if pkt == nil {
			continue
		}
		if err := t.Pacer.Enqueue(&PacedPacket{Packet: pkt, Timestamp: pkt.Header.Timestamp}); err != nil {
			return err
		}
	}
	return nil
}

// PlayStream owns a subscriber's per-SSRC send tracks and dispatches
// incoming RTCP by type (spec §4.9 PlayStream).
type PlayStream struct {
	logger *logger.Logger

	mu     sync.Mutex
	tracks map[uint32]*SendTrack
}

// NewPlayStream constructs an empty PlayStream.
func NewPlayStream(log *logger.Logger) *PlayStream {
	return &PlayStream{
		logger: log.With("component", "play_stream"),
		tracks: make(map[uint32]*SendTrack),
	}
}

// AddTrack registers a send track, indexed by every SSRC that can name it
// (primary, RTX, FEC), matching spec §3's "a track is matched by any of
// its three SSRCs".
func (s *PlayStream) AddTrack(track *SendTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[track.Desc.SSRC] = track
	if track.Desc.RtxSSRC != nil {
		s.tracks[*track.Desc.RtxSSRC] = track
	}
	if track.Desc.FecSSRC != nil {
		s.tracks[*track.Desc.FecSSRC] = track
	}
}

func (s *PlayStream) trackBySSRC(ssrc uint32) *SendTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks[ssrc]
}

// OnRTCP dispatches an incoming RTCP packet by concrete type (spec §4.9
// "RTCP dispatch by type (RR | rtpfb | psfb | xr | bye)").
func (s *PlayStream) OnRTCP(pkt rtcp.Packet) error {
	switch p := pkt.(type) {
	case *rtcp.ReceiverReport:
		return s.onReceiverReport(p)
	case *rtcp.TransportLayerNack:
		return s.onNack(p)
	case *rtcp.PictureLossIndication:
		return s.onPLI(p)
	case *rtcp.FullIntraRequest:
		return s.onFIR(p)
	case *rtcp.ExtendedReport:
		return s.onExtendedReport(p)
	case *rtcp.Goodbye:
		return s.onGoodbye(p)
	default:
		return nil
	}
}

func (s *PlayStream) onReceiverReport(rr *rtcp.ReceiverReport) error {
	for _, r := range rr.Reports {
		if t := s.trackBySSRC(r.SSRC); t != nil {
			s.logger.DebugRTC("receiver report", "ssrc", r.SSRC, "fraction_lost", r.FractionLost)
		}
	}
	return nil
}

// onNack locates the track whose active SSRC matches the NACK's media
// SSRC and resends the lost packets (spec §4.9 "NACK dispatch").
func (s *PlayStream) onNack(nack *rtcp.TransportLayerNack) error {
	t := s.trackBySSRC(nack.MediaSSRC)
	if t == nil {
		return errs.New(errs.KindRTPMuxer, "nack for unknown ssrc")
	}
	return t.OnRecvNack(LostSequenceNumbers(nack))
}

func (s *PlayStream) onPLI(pli *rtcp.PictureLossIndication) error {
	if t := s.trackBySSRC(pli.MediaSSRC); t != nil {
		s.logger.DebugRTC("pli received", "ssrc", pli.MediaSSRC)
	}
	return nil
}

func (s *PlayStream) onFIR(fir *rtcp.FullIntraRequest) error {
	for _, e := range fir.FIR {
		if t := s.trackBySSRC(e.SSRC); t != nil {
			s.logger.DebugRTC("fir received", "ssrc", e.SSRC)
		}
	}
	return nil
}

func (s *PlayStream) onExtendedReport(xr *rtcp.ExtendedReport) error {
	s.logger.DebugRTC("xr received", "ssrc", xr.SenderSSRC)
	return nil
}

func (s *PlayStream) onGoodbye(bye *rtcp.Goodbye) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ssrc := range bye.Sources {
		if t, ok := s.tracks[ssrc]; ok {
			t.Active = false
		}
	}
	return nil
}

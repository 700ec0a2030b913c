package rtc

import "github.com/srs-core/mediacore/pkg/errs"

// detectorState is FrameDetector's two-state machine (spec §4.4 FrameDetector).
type detectorState int

const (
	stateNoKey detectorState = iota
	stateAssembling
)

// seqBefore reports whether a comes strictly before b in circular sequence
// number space (RFC 3550 §5.1 serial number arithmetic).
func seqBefore(a, b uint16) bool {
	return int16(a-b) < 0
}

// FrameDetector anchors RTP video frame reassembly on keyframe boundaries and
// walks VideoPacketCache to find when a complete frame is ready (spec §4.4).
type FrameDetector struct {
	cache *VideoPacketCache

	state  detectorState
	header uint16 // first sequence number of the frame currently being assembled
	lost   uint16 // current "next expected or missing" pointer
	keyTs  uint32 // RTP timestamp of the stored keyframe anchor
}

// NewFrameDetector constructs a detector over cache, which must be the same
// cache the caller writes every received video packet into.
func NewFrameDetector(cache *VideoPacketCache) *FrameDetector {
	return &FrameDetector{cache: cache, state: stateNoKey}
}

// OnKeyframe anchors a new reassembly run at pkt when there is no current key
// or pkt starts a different frame than the one currently anchored (spec §4.4
// "On keyframe arrival: if no key or RTP timestamp differs from stored key
// timestamp, clear the cache and anchor at the new key"). pkt must already
// have been written to the cache via Write.
func (d *FrameDetector) OnKeyframe(pkt *RtpPacket) {
	if d.state == stateNoKey || pkt.Header.Timestamp != d.keyTs {
		d.cache.Clear()
		d.cache.Write(pkt)
		d.keyTs = pkt.Header.Timestamp
		d.header = pkt.SequenceNumber()
		d.lost = pkt.SequenceNumber()
		d.state = stateAssembling
	}
}

// DetectFrame re-evaluates reassembly progress after received was written to
// the cache. It returns ready=true with [header, tail] set to one complete
// frame's sequence range when detection finds one (spec §4.4, §8 scenario 4).
//
// Callers should call DetectFrame again with tail+1 immediately after
// consuming a ready frame, to pick up any subsequent frame that completed in
// the same burst of packets.
func (d *FrameDetector) DetectFrame(received uint16) (ready bool, header, tail uint16, err error) {
	if d.state == stateNoKey {
		return false, 0, 0, nil
	}

	if seqBefore(received, d.header) {
		// Late-arriving start-of-frame packet: widen the frame backwards.
		d.header = received
	}
	if received == d.lost {
		// The packet we were waiting on arrived; re-scan for the next gap.
	}
	// Otherwise the received packet didn't change what we're waiting on, but
	// the scan below still re-evaluates from the current lost pointer.

	result, tail := d.cache.FindNextLostSN(d.lost, d.header)
	switch result {
	case lostOverflow:
		return false, 0, 0, errs.New(errs.KindRTPMuxer, "video frame cache overflow")
	case lostFrameEnd:
		if !d.cache.CheckFrameComplete(d.header, tail) {
			// Reached a timestamp boundary or marker bit but an FU-A/FU-HEVC
			// run inside the range is unterminated; wait for more packets.
			return false, 0, 0, nil
		}
		h := d.header
		d.header = tail + 1
		d.lost = tail + 1
		return true, h, tail, nil
	default:
		d.lost = uint16(result)
		return false, 0, 0, nil
	}
}

package rtc

// VideoPacketCacheBits sizes the video frame reassembly ring at 2^bits slots.
const VideoPacketCacheBits = 12 // 4096 slots

// Sentinels returned by VideoPacketCache.FindNextLostSN (spec §4.4).
const (
	// lostOverflow signals cache-capacity exhaustion.
	lostOverflow = int32(-2)
	// lostFrameEnd signals the frame's last packet was found (marker bit or
	// RTP timestamp change); Tail in the returned result names it.
	lostFrameEnd = int32(-1)
)

type videoSlot struct {
	pkt    *RtpPacket
	seq    uint16
	rtpTs  uint32
	avsync int64
	inUse  bool
}

// VideoPacketCache is a fixed-size ring indexed by seq%N, storing RTP video
// packets for frame reassembly (spec §3, §4.4 VideoPacketCache).
type VideoPacketCache struct {
	slots []videoSlot
	mask  uint16
}

func NewVideoPacketCache() *VideoPacketCache {
	size := uint16(1) << VideoPacketCacheBits
	return &VideoPacketCache{
		slots: make([]videoSlot, size),
		mask:  size - 1,
	}
}

// Clear marks every slot unused, called when a fresh keyframe anchors a new
// reassembly run (spec §4.4 FrameDetector "On keyframe arrival").
func (c *VideoPacketCache) Clear() {
	for i := range c.slots {
		c.slots[i] = videoSlot{}
	}
}

// Write stores pkt, overwriting and freeing whatever previously occupied the
// slot.
func (c *VideoPacketCache) Write(pkt *RtpPacket) {
	idx := pkt.SequenceNumber() & c.mask
	c.slots[idx] = videoSlot{
		pkt:    pkt,
		seq:    pkt.SequenceNumber(),
		rtpTs:  pkt.Header.Timestamp,
		avsync: pkt.AvsyncTime,
		inUse:  true,
	}
}

// Get returns the packet stored for seq, if its slot is in use and the
// stored sequence matches exactly (guards against ring wraparound aliasing).
func (c *VideoPacketCache) Get(seq uint16) (*RtpPacket, bool) {
	s := &c.slots[seq&c.mask]
	if !s.inUse || s.seq != seq {
		return nil, false
	}
	return s.pkt, true
}

// FindNextLostSN walks forward from current while slots are in use and share
// header's RTP timestamp. It returns the first missing sequence number
// (gap ≥ 0), lostFrameEnd with tail set to the frame's last sequence number
// (marker bit or timestamp change observed), or lostOverflow if the walk
// exceeds the cache's capacity without resolving (spec §4.4).
func (c *VideoPacketCache) FindNextLostSN(current, header uint16) (result int32, tail uint16) {
	headerSlot := &c.slots[header&c.mask]
	if !headerSlot.inUse || headerSlot.seq != header {
		return lostOverflow, 0
	}
	headerTs := headerSlot.rtpTs

	seq := current
	for i := uint32(0); i <= uint32(c.mask); i++ {
		s := &c.slots[seq&c.mask]
		if !s.inUse || s.seq != seq {
			return int32(seq), 0
		}
		if s.rtpTs != headerTs {
			return lostFrameEnd, seq - 1
		}
		if s.pkt.Header.Marker {
			return lostFrameEnd, seq
		}
		seq++
	}
	return lostOverflow, 0
}

// CheckFrameComplete scans [start, end] and verifies that the count of FU-A/
// FU-HEVC start markers equals the count of end markers — sufficient given
// single-NALU and STAP-A/aggregation packets are self-contained (spec §4.4).
func (c *VideoPacketCache) CheckFrameComplete(start, end uint16) bool {
	starts, ends := 0, 0
	for seq := start; ; seq++ {
		s := &c.slots[seq&c.mask]
		if s.inUse && s.seq == seq {
			switch s.pkt.Tag {
			case PayloadFUA, PayloadFUHEVC:
				if len(s.pkt.Payload) >= 2 {
					fuHeader := s.pkt.Payload[1]
					if fuHeader&0x80 != 0 {
						starts++
					}
					if fuHeader&0x40 != 0 {
						ends++
					}
				}
			}
		}
		if seq == end {
			break
		}
	}
	return starts == ends
}

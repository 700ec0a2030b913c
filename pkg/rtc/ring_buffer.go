package rtc

// RtpRingBuffer is a sender-side retransmission store keyed by the low bits
// of the sequence number (spec §3 RtpRingBuffer). FetchRtpPacket returns a
// stored packet only on an exact full-sequence match: after 65536 packets
// the low bits wrap and could otherwise return a packet for the wrong
// "generation" of that sequence number, corrupting SRTP authentication
// (spec §8 scenario 5).
type RtpRingBuffer struct {
	slots []*RtpPacket
	mask  uint16
}

// NewRtpRingBuffer constructs a ring with capacity 2^bits.
func NewRtpRingBuffer(bits uint) *RtpRingBuffer {
	size := uint16(1) << bits
	return &RtpRingBuffer{
		slots: make([]*RtpPacket, size),
		mask:  size - 1,
	}
}

// Store inserts pkt, overwriting whatever previously occupied its slot.
func (r *RtpRingBuffer) Store(pkt *RtpPacket) {
	r.slots[pkt.SequenceNumber()&r.mask] = pkt
}

// FetchRtpPacket returns the stored packet for seq only if its full
// sequence number matches exactly; otherwise nil (spec §3, §8 scenario 5).
func (r *RtpRingBuffer) FetchRtpPacket(seq uint16) *RtpPacket {
	p := r.slots[seq&r.mask]
	if p == nil || p.SequenceNumber() != seq {
		return nil
	}
	return p
}

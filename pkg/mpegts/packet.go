package mpegts

import (
	"encoding/binary"

	"github.com/srs-core/mediacore/pkg/errs"
)

// AdaptationField holds the fields of a decoded TS adaptation field relevant
// to this core (spec §4.11 decoder flow).
type AdaptationField struct {
	DiscontinuityIndicator bool
	RandomAccessIndicator  bool
	SplicingPoint          bool
	PCR                    uint64 // 0 if absent
	HasPCR                 bool
}

// Header is a decoded 4-byte TS packet header plus any adaptation field.
type Header struct {
	PID                        uint16
	PayloadUnitStartIndicator  bool
	ContinuityCounter          uint8
	HasAdaptationField         bool
	HasPayload                 bool
	Adaptation                 AdaptationField
}

// writePSIPacket emits one PAT or PMT section as a single 188-byte TS
// packet: pointer_field=0x00, stuffed with 0xFF to fill the packet (spec
// §4.11 step 2).
func writePSIPacket(pid uint16, cc *uint8, section []byte) ([]byte, error) {
	if len(section)+1+4 > PacketSize-4 {
		return nil, errs.New(errs.KindTSPESBoundary, "PSI section too large for one TS packet")
	}

	pkt := make([]byte, PacketSize)
	pkt[0] = syncByte
	binary.BigEndian.PutUint16(pkt[1:3], 0x4000|pid) // payload_unit_start_indicator=1
	pkt[3] = 0x10 | (*cc & 0x0F)                      // no adaptation field, payload only
	*cc = (*cc + 1) & 0x0F

	n := copy(pkt[4:], append([]byte{0x00}, section...)) // pointer_field
	for i := 4 + n; i < PacketSize; i++ {
		pkt[i] = 0xFF
	}
	return pkt, nil
}

// writePESPackets splits a PES payload (already including its PES header)
// across one or more 188-byte TS packets. writePCR, when true, carries a PCR
// in the adaptation field of the first packet; randomAccess sets the
// random_access_indicator for keyframes. Every packet is padded to exactly
// PacketSize via adaptation-field stuffing on the final packet.
func writePESPackets(pid uint16, cc *uint8, payload []byte, writePCR bool, pcr uint64, randomAccess bool) [][]byte {
	var packets [][]byte
	first := true

	for len(payload) > 0 {
		pkt := make([]byte, PacketSize)
		pkt[0] = syncByte

		pusi := uint16(0)
		if first {
			pusi = 0x4000
		}
		binary.BigEndian.PutUint16(pkt[1:3], pusi|pid)

		headerLen := 4
		availBeforeAF := PacketSize - headerLen
		remaining := len(payload)

		needsAF := first && writePCR
		finalPacket := remaining <= availBeforeAF
		if !needsAF && !finalPacket {
			pkt[3] = 0x10 | (*cc & 0x0F) // payload only
			n := copy(pkt[headerLen:], payload)
			payload = payload[n:]
			*cc = (*cc + 1) & 0x0F
			packets = append(packets, pkt)
			first = false
			continue
		}

		// Adaptation field present: either we need a PCR, or we need stuffing
		// to pad the final, shorter-than-184-byte chunk.
		pkt[3] = 0x30 | (*cc & 0x0F)
		*cc = (*cc + 1) & 0x0F

		afFlags := byte(0)
		afBodyLen := 0
		if needsAF {
			afFlags |= 0x10 // PCR_flag
			afBodyLen += 6
		}
		if first && randomAccess {
			afFlags |= 0x40 // random_access_indicator
		}

		dataLenAvail := availBeforeAF - 1 /*adaptation_field_length byte*/ - 1 /*flags byte*/ - afBodyLen
		chunk := remaining
		if chunk > dataLenAvail {
			chunk = dataLenAvail
		}
		stuffing := dataLenAvail - chunk

		afLen := 1 + afBodyLen + stuffing // +1 for the flags byte itself
		pkt[4] = byte(afLen)
		pkt[5] = afFlags
		off := 6
		if needsAF {
			writePCRField(pkt[off:off+6], pcr)
			off += 6
		}
		for i := 0; i < stuffing; i++ {
			pkt[off+i] = 0xFF
		}
		off += stuffing

		n := copy(pkt[off:], payload[:chunk])
		payload = payload[chunk:]
		_ = n

		packets = append(packets, pkt)
		first = false
	}

	return packets
}

// writePCRField encodes a 42-bit PCR (33-bit base + 6 reserved + 9-bit
// extension, extension always 0 here) into 6 bytes.
func writePCRField(out []byte, pcr uint64) {
	base := pcr & 0x1FFFFFFFF
	out[0] = byte(base >> 25)
	out[1] = byte(base >> 17)
	out[2] = byte(base >> 9)
	out[3] = byte(base >> 1)
	out[4] = byte(base<<7) | 0x7E // reserved bits 1, extension high bit 0
	out[5] = 0x00
}

func readPCRField(b []byte) uint64 {
	base := uint64(b[0])<<25 | uint64(b[1])<<17 | uint64(b[2])<<9 | uint64(b[3])<<1 | uint64(b[4]>>7)
	return base
}

// ParseHeader decodes the 4-byte TS header and adaptation field (if any),
// returning the header and the offset at which the payload starts.
func ParseHeader(pkt []byte) (Header, int, error) {
	if len(pkt) != PacketSize {
		return Header{}, 0, errs.New(errs.KindTSSync, "packet is not 188 bytes")
	}
	if pkt[0] != syncByte {
		return Header{}, 0, errs.New(errs.KindTSSync, "bad sync byte")
	}

	h := Header{}
	h.PID = binary.BigEndian.Uint16(pkt[1:3]) & 0x1FFF
	h.PayloadUnitStartIndicator = pkt[1]&0x40 != 0
	afc := (pkt[3] >> 4) & 0x03
	h.ContinuityCounter = pkt[3] & 0x0F
	h.HasAdaptationField = afc == 0x02 || afc == 0x03
	h.HasPayload = afc == 0x01 || afc == 0x03

	off := 4
	if h.HasAdaptationField {
		if off >= len(pkt) {
			return Header{}, 0, errs.New(errs.KindTSAdaptationField, "truncated adaptation field")
		}
		afLen := int(pkt[off])
		off++
		afEnd := off + afLen
		if afLen > 0 {
			if afEnd > len(pkt) {
				return Header{}, 0, errs.New(errs.KindTSAdaptationField, "adaptation_field_length exceeds packet")
			}
			flags := pkt[off]
			h.Adaptation.DiscontinuityIndicator = flags&0x80 != 0
			h.Adaptation.RandomAccessIndicator = flags&0x40 != 0
			h.Adaptation.SplicingPoint = flags&0x04 != 0
			cursor := off + 1
			if flags&0x10 != 0 && cursor+6 <= afEnd {
				h.Adaptation.HasPCR = true
				h.Adaptation.PCR = readPCRField(pkt[cursor : cursor+6])
			}
		}
		off = afEnd
	}

	return h, off, nil
}

package mpegts

import (
	"encoding/binary"

	"github.com/srs-core/mediacore/pkg/errs"
)

// Frame is one encoded media unit ready to be packaged into PES + TS packets
// by TsContext.Encode; decoding yields a TsMessage instead. Dts/Pts are 90kHz
// clock ticks.
type Frame struct {
	PID       uint16
	StreamID  uint8
	Dts       uint64
	Pts       uint64
	Key       bool
	Raw       []byte // ADTS-framed AAC, or annexb AVC/HEVC
}

// encodePESHeader builds a PES header (packet_start_code_prefix through the
// optional PTS/DTS fields) for payloadLen bytes of elementary-stream data.
// pesPacketLength is 0 when the caller wants "length unknown" (used for
// video, per spec §4.11 PES reassembly invariants).
func encodePESHeader(streamID uint8, dts, pts uint64, hasDts bool, payloadLen int, pesPacketLengthUnknown bool) []byte {
	headerDataLen := 5 // PTS only
	ptsDtsFlags := byte(0x80)
	if hasDts && dts != pts {
		headerDataLen = 10
		ptsDtsFlags = 0xC0
	}

	hdr := make([]byte, 9+headerDataLen)
	hdr[0], hdr[1], hdr[2] = 0x00, 0x00, 0x01
	hdr[3] = streamID

	pesLen := 3 + headerDataLen + payloadLen // flags(2)+header_data_length(1)+optional fields + payload
	if pesPacketLengthUnknown || pesLen > 0xFFFF {
		binary.BigEndian.PutUint16(hdr[4:6], 0)
	} else {
		binary.BigEndian.PutUint16(hdr[4:6], uint16(pesLen))
	}

	hdr[6] = 0x80 // '10' + flags, no scrambling/priority/alignment/copyright
	hdr[7] = ptsDtsFlags
	hdr[8] = byte(headerDataLen)

	off := 9
	if ptsDtsFlags == 0xC0 {
		encodePTSDTS(0x03, pts, hdr[off:off+5])
		off += 5
		encodePTSDTS(0x01, dts, hdr[off:off+5])
	} else {
		encodePTSDTS(0x02, pts, hdr[off:off+5])
	}

	return hdr
}

// decodePESHeader parses a PES header and returns it alongside the byte
// offset at which the elementary-stream payload begins.
func decodePESHeader(b []byte) (streamID uint8, dts, pts uint64, payloadOff int, err error) {
	if len(b) < 9 || b[0] != 0x00 || b[1] != 0x00 || b[2] != 0x01 {
		return 0, 0, 0, 0, errs.New(errs.KindTSPESBoundary, "bad PES start code")
	}
	streamID = b[3]
	ptsDtsFlags := b[7] >> 6
	headerDataLen := int(b[8])
	off := 9

	switch ptsDtsFlags {
	case 0x02:
		pts, err = decodePTSDTS(b[off : off+5])
		if err != nil {
			return 0, 0, 0, 0, err
		}
		dts = pts
	case 0x03:
		pts, err = decodePTSDTS(b[off : off+5])
		if err != nil {
			return 0, 0, 0, 0, err
		}
		dts, err = decodePTSDTS(b[off+5 : off+10])
		if err != nil {
			return 0, 0, 0, 0, err
		}
	}

	payloadOff = 9 + headerDataLen
	if payloadOff > len(b) {
		return 0, 0, 0, 0, errs.New(errs.KindTSPESBoundary, "PES header_data_length exceeds buffer")
	}
	return streamID, dts, pts, payloadOff, nil
}

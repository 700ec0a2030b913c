package mpegts

import (
	"encoding/binary"

	"github.com/srs-core/mediacore/pkg/errs"
)

// PAT is the decoded Program Association Table: one program naming the PMT's PID.
type PAT struct {
	TransportStreamID uint16
	ProgramNumber     uint16
	ProgramMapPID     uint16
}

// PMTStream is one elementary-stream entry in a PMT.
type PMTStream struct {
	StreamType StreamType
	PID        uint16
}

// PMT is the decoded Program Map Table.
type PMT struct {
	ProgramNumber uint16
	PCRPID        uint16
	Streams       []PMTStream
}

// encodePSISection wraps a PSI payload (table_id..last_section_number..body,
// everything up to but excluding the CRC) with its CRC-32/MPEG-2 trailer.
func encodePSISection(body []byte) []byte {
	crc := CRC32MPEG2(body)
	out := make([]byte, len(body)+4)
	copy(out, body)
	binary.BigEndian.PutUint32(out[len(body):], crc)
	return out
}

// EncodePAT builds the PAT section bytes (table_id through CRC), naming one
// program at PidPMT, matching spec §8 scenario 1.
func EncodePAT() []byte {
	// section after table_id: section_length computed below; program entry is
	// program_number(2) + reserved(3)+PID(13).
	const bodyAfterLength = 2 /*tsid*/ + 1 /*version*/ + 1 /*section_number*/ + 1 /*last_section_number*/ + 4 /*one program entry*/
	sectionLength := bodyAfterLength + 4 // + CRC

	body := make([]byte, 3+bodyAfterLength)
	body[0] = 0x00 // table_id
	binary.BigEndian.PutUint16(body[1:3], uint16(0xB000)|uint16(sectionLength))
	binary.BigEndian.PutUint16(body[3:5], 1) // transport_stream_id
	body[5] = 0xC1                           // reserved(2)=11, version=0, current_next=1
	body[6] = 0x00                           // section_number
	body[7] = 0x00                           // last_section_number
	binary.BigEndian.PutUint16(body[8:10], pmtPeriodID)
	binary.BigEndian.PutUint16(body[10:12], 0xE000|PidPMT)

	return encodePSISection(body)
}

// DecodePAT parses a PAT section (table_id through CRC, CRC validated).
func DecodePAT(section []byte) (*PAT, error) {
	if len(section) < 12 {
		return nil, errs.New(errs.KindTSPSICRC, "PAT section too short")
	}
	if section[0] != 0x00 {
		return nil, errs.New(errs.KindTSPSICRC, "not a PAT table_id")
	}
	sectionLength := int(binary.BigEndian.Uint16(section[1:3]) & 0x0FFF)
	total := 3 + sectionLength
	if total > len(section) {
		return nil, errs.New(errs.KindTSPSICRC, "PAT section_length exceeds buffer")
	}
	body := section[:total-4]
	wantCRC := binary.BigEndian.Uint32(section[total-4 : total])
	if CRC32MPEG2(body) != wantCRC {
		return nil, errs.New(errs.KindTSPSICRC, "PAT CRC mismatch")
	}

	tsid := binary.BigEndian.Uint16(section[3:5])
	programNumber := binary.BigEndian.Uint16(section[8:10])
	pmtPID := binary.BigEndian.Uint16(section[10:12]) & 0x1FFF

	return &PAT{
		TransportStreamID: tsid,
		ProgramNumber:     programNumber,
		ProgramMapPID:     pmtPID,
	}, nil
}

// EncodePMT builds the PMT section bytes for the given elementary streams.
// PCRPID follows the REDESIGN note in spec §9: video PID unconditionally
// when any video stream is present, else the audio PID.
func EncodePMT(streams []PMTStream) []byte {
	pcrPID := uint16(PidAudio)
	for _, s := range streams {
		if s.StreamType == StreamTypeAVC || s.StreamType == StreamTypeHEVC {
			pcrPID = s.PID
			break
		}
	}

	const headBeforeStreams = 2 /*program_number*/ + 1 /*version*/ + 1 /*section_number*/ + 1 /*last_section_number*/ + 2 /*PCR_PID*/ + 2 /*program_info_length*/
	streamsLen := len(streams) * 5
	sectionLength := headBeforeStreams + streamsLen + 4 // + CRC

	body := make([]byte, 3+headBeforeStreams+streamsLen)
	body[0] = 0x02 // table_id
	binary.BigEndian.PutUint16(body[1:3], uint16(0xB000)|uint16(sectionLength))
	binary.BigEndian.PutUint16(body[3:5], pmtPeriodID)
	body[5] = 0xC1 // reserved+version 0+current_next 1
	body[6] = 0x00
	body[7] = 0x00
	binary.BigEndian.PutUint16(body[8:10], 0xE000|pcrPID)
	binary.BigEndian.PutUint16(body[10:12], 0xF000) // program_info_length = 0

	off := 12
	for _, s := range streams {
		body[off] = byte(s.StreamType)
		binary.BigEndian.PutUint16(body[off+1:off+3], 0xE000|s.PID)
		binary.BigEndian.PutUint16(body[off+3:off+5], 0xF000) // ES_info_length = 0
		off += 5
	}

	return encodePSISection(body)
}

// DecodePMT parses a PMT section (table_id through CRC, CRC validated).
func DecodePMT(section []byte) (*PMT, error) {
	if len(section) < 16 {
		return nil, errs.New(errs.KindTSPSICRC, "PMT section too short")
	}
	if section[0] != 0x02 {
		return nil, errs.New(errs.KindTSPSICRC, "not a PMT table_id")
	}
	sectionLength := int(binary.BigEndian.Uint16(section[1:3]) & 0x0FFF)
	total := 3 + sectionLength
	if total > len(section) {
		return nil, errs.New(errs.KindTSPSICRC, "PMT section_length exceeds buffer")
	}
	body := section[:total-4]
	wantCRC := binary.BigEndian.Uint32(section[total-4 : total])
	if CRC32MPEG2(body) != wantCRC {
		return nil, errs.New(errs.KindTSPSICRC, "PMT CRC mismatch")
	}

	programNumber := binary.BigEndian.Uint16(section[3:5])
	pcrPID := binary.BigEndian.Uint16(section[8:10]) & 0x1FFF
	programInfoLength := int(binary.BigEndian.Uint16(section[10:12]) & 0x0FFF)

	off := 12 + programInfoLength
	var streams []PMTStream
	for off+5 <= total-4 {
		streamType := StreamType(section[off])
		pid := binary.BigEndian.Uint16(section[off+1:off+3]) & 0x1FFF
		esInfoLength := int(binary.BigEndian.Uint16(section[off+3:off+5]) & 0x0FFF)
		streams = append(streams, PMTStream{StreamType: streamType, PID: pid})
		off += 5 + esInfoLength
	}

	return &PMT{ProgramNumber: programNumber, PCRPID: pcrPID, Streams: streams}, nil
}

package mpegts

import "github.com/srs-core/mediacore/pkg/errs"

// encodePTSDTS writes a 33-bit timestamp into 5 bytes per ISO 13818-1,
// prefixed with the given 4-bit marker nibble (2 for PTS-only, 3 for the
// first of PTS+DTS, 1 for the second of PTS+DTS).
func encodePTSDTS(prefix byte, ts uint64, out []byte) {
	ts &= 0x1FFFFFFFF // 33 bits

	out[0] = (prefix << 4) | byte((ts>>30)&0x07)<<1 | 0x01
	out[1] = byte((ts >> 22) & 0xFF)
	out[2] = byte((ts>>15)&0x7F)<<1 | 0x01
	out[3] = byte((ts >> 7) & 0xFF)
	out[4] = byte((ts&0x7F)<<1) | 0x01
}

// decodePTSDTS parses a 5-byte PTS/DTS field, validating the mandatory
// marker bits at bit positions 0, 16 and 32 of the group (spec §4.11).
func decodePTSDTS(b []byte) (ts uint64, err error) {
	if len(b) < 5 {
		return 0, errs.New(errs.KindTSPESBoundary, "pts/dts field too short")
	}
	if b[0]&0x01 == 0 || b[2]&0x01 == 0 || b[4]&0x01 == 0 {
		return 0, errs.New(errs.KindTSPESBoundary, "pts/dts marker bit missing")
	}
	ts = uint64(b[0]>>1&0x07) << 30
	ts |= uint64(b[1]) << 22
	ts |= uint64(b[2]>>1) << 15
	ts |= uint64(b[3]) << 7
	ts |= uint64(b[4] >> 1)
	return ts, nil
}

package mpegts

// AVC NAL unit types relevant to annexb emission.
const (
	avcNaluSPS = 7
	avcNaluPPS = 8
	avcNaluAUD = 9
	avcNaluIDR = 5
)

// HEVC NAL unit types (type is bits 1-6 of the first byte, per RFC 7798).
const (
	hevcNaluVPS = 32
	hevcNaluSPS = 33
	hevcNaluPPS = 34
	hevcNaluAUD = 35
)

func avcNaluType(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0] & 0x1F
}

func hevcNaluType(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return (b[0] >> 1) & 0x3F
}

// EmitAnnexBAVC concatenates H.264 NALUs into an annexb byte stream: a
// 4-byte start code on the first NALU, 3-byte start codes on the rest. If
// the frame is an IDR and carries no SPS of its own, cachedSPS and cachedPPS
// (each without a start code) are inserted before the frame's NALUs. An AUD is prepended if the sample set carries none (spec
// §4.11 AVC/HEVC annexb emission).
func EmitAnnexBAVC(nalus [][]byte, isIDR bool, cachedSPS, cachedPPS []byte) []byte {
	hasAUD, hasSPS := false, false
	for _, n := range nalus {
		switch avcNaluType(n) {
		case avcNaluAUD:
			hasAUD = true
		case avcNaluSPS:
			hasSPS = true
		}
	}

	var out []byte
	first := true
	appendNALU := func(n []byte) {
		if first {
			out = append(out, 0x00, 0x00, 0x00, 0x01)
			first = false
		} else {
			out = append(out, 0x00, 0x00, 0x01)
		}
		out = append(out, n...)
	}

	if !hasAUD {
		appendNALU([]byte{(0 << 5) | avcNaluAUD, 0xF0})
	}
	if isIDR && !hasSPS {
		if len(cachedSPS) > 0 {
			appendNALU(cachedSPS)
		}
		if len(cachedPPS) > 0 {
			appendNALU(cachedPPS)
		}
	}
	for _, n := range nalus {
		appendNALU(n)
	}
	return out
}

// EmitAnnexBHEVC is EmitAnnexBAVC's HEVC analog: prepends cached VPS+SPS+PPS
// ahead of an IRAP frame that carries none of its own.
func EmitAnnexBHEVC(nalus [][]byte, isIRAP bool, cachedVPS, cachedSPS, cachedPPS []byte) []byte {
	hasAUD, hasVPS := false, false
	for _, n := range nalus {
		switch hevcNaluType(n) {
		case hevcNaluAUD:
			hasAUD = true
		case hevcNaluVPS:
			hasVPS = true
		}
	}

	var out []byte
	first := true
	appendNALU := func(n []byte) {
		if first {
			out = append(out, 0x00, 0x00, 0x00, 0x01)
			first = false
		} else {
			out = append(out, 0x00, 0x00, 0x01)
		}
		out = append(out, n...)
	}

	if !hasAUD {
		appendNALU([]byte{(hevcNaluAUD << 1), 0x01, 0x50})
	}
	if isIRAP && !hasVPS {
		for _, n := range [][]byte{cachedVPS, cachedSPS, cachedPPS} {
			if len(n) > 0 {
				appendNALU(n)
			}
		}
	}
	for _, n := range nalus {
		appendNALU(n)
	}
	return out
}

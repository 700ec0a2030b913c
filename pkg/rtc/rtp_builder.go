package rtc

import (
	"github.com/pion/rtp"

	"github.com/srs-core/mediacore/pkg/errs"
	"github.com/srs-core/mediacore/pkg/mpegts"
)

// MaxRTPPayloadSize is the largest single-NALU/FU-A fragment payload this
// builder emits before falling back to fragmentation (spec §4.6: "size ≤
// 1200B → single-NALU RTP; larger → FU-A fragments of ≤ 1200B").
const MaxRTPPayloadSize = 1200

// AudioTranscoder converts one ADTS-framed AAC access unit into one or more
// Opus frames (spec §4.6: "transcode via an audio transcoder collaborator").
type AudioTranscoder interface {
	Transcode(adts []byte) ([][]byte, error)
}

// NALUFilter configures the video sample filtering policy of spec §4.6.
type NALUFilter struct {
	KeepAVCNaluSEI bool
	KeepBFrame     bool
	MergeNalus     bool
}

// RTPBuilder packetizes RTMP audio/video frames into RTP packets for the RTC
// play side of a bridged stream (spec §4.6 RTP Builder).
type RTPBuilder struct {
	Desc       *StreamDescription
	Filter     NALUFilter
	Transcoder AudioTranscoder

	audioSeq uint16
	videoSeq uint16

	vps, sps, pps []byte // cached decoder configuration record NALUs
	isHEVC        bool
}

// NewRTPBuilder constructs a builder targeting desc's negotiated tracks.
func NewRTPBuilder(desc *StreamDescription, filter NALUFilter, transcoder AudioTranscoder) *RTPBuilder {
	return &RTPBuilder{Desc: desc, Filter: filter, Transcoder: transcoder}
}

// SetDecoderConfig caches the SPS/PPS (AVC) or VPS/SPS/PPS (HEVC) NALUs from
// the most recent sequence header, used to build the STAP-A/aggregation
// packet emitted ahead of each IDR/IRAP frame.
func (b *RTPBuilder) SetDecoderConfig(vps, sps, pps []byte, hevc bool) {
	b.vps, b.sps, b.pps, b.isHEVC = vps, sps, pps, hevc
}

// BuildAudio packetizes one RTMP AAC access unit into RTP Opus packets. dtsMs
// is the frame's decode timestamp in milliseconds (spec §4.6: "ts = dts·48").
func (b *RTPBuilder) BuildAudio(dtsMs uint32, aacRaw []byte, sampleRateHz int, channelConfig, profile uint8) ([]*RtpPacket, error) {
	track := b.Desc.FindByCodecName("opus")
	if track == nil {
		return nil, errs.New(errs.KindRTPMuxer, "no opus track negotiated")
	}

	idx := mpegts.ADTSSampleRateIndex(sampleRateHz)
	if idx < 0 {
		return nil, errs.New(errs.KindRTPMuxer, "unsupported AAC sample rate for ADTS")
	}
	adts := mpegts.EncodeADTS(profile, uint8(idx), channelConfig, aacRaw)

	opusFrames, err := b.Transcoder.Transcode(adts)
	if err != nil {
		return nil, errs.Wrap(errs.KindRTPMuxer, "transcode to opus", err)
	}

	pkts := make([]*RtpPacket, 0, len(opusFrames))
	for _, frame := range opusFrames {
		pkts = append(pkts, &RtpPacket{
			Header: rtp.Header{
				Version:        2,
				Marker:         true,
				PayloadType:    track.Primary.PayloadType,
				SequenceNumber: b.audioSeq,
				Timestamp:      dtsMs * 48,
				SSRC:           track.SSRC,
			},
			Frame:   FrameAudio,
			Tag:     PayloadOpus,
			Payload: frame,
		})
		b.audioSeq++
	}
	return pkts, nil
}

// BuildVideo packetizes one RTMP video frame's NALU samples into RTP
// packets, applying the filter policy and IDR/IRAP STAP-A prefixing of spec
// §4.6. dtsMs is the frame's decode timestamp in milliseconds; the RTP
// timestamp uses the track's 90kHz video clock convention (dts·90).
func (b *RTPBuilder) BuildVideo(dtsMs uint32, samples [][]byte, hasKeyframe bool) ([]*RtpPacket, error) {
	codecName := "H264"
	if b.isHEVC {
		codecName = "H265"
	}
	track := b.Desc.FindByCodecName(codecName)
	if track == nil {
		return nil, errs.New(errs.KindRTPMuxer, "no video track negotiated for "+codecName)
	}
	ts := dtsMs * 90

	filtered := b.filterSamples(samples)

	var pkts []*RtpPacket
	if hasKeyframe {
		stap, err := b.buildParameterSetPacket(track, ts)
		if err != nil {
			return nil, err
		}
		if stap != nil {
			pkts = append(pkts, stap)
		}
	}

	if b.Filter.MergeNalus && len(filtered) > 1 {
		merged := mergeNalus(filtered)
		pkts = append(pkts, b.packageOne(track, ts, merged)...)
	} else {
		for _, sample := range filtered {
			pkts = append(pkts, b.packageOne(track, ts, sample)...)
		}
	}

	if len(pkts) > 0 {
		pkts[len(pkts)-1].Header.Marker = true
	}
	return pkts, nil
}

// filterSamples drops SEI NALUs (unless KeepAVCNaluSEI) and B-slices (unless
// KeepBFrame), preserving order (spec §4.6 filtering policy).
func (b *RTPBuilder) filterSamples(samples [][]byte) [][]byte {
	out := make([][]byte, 0, len(samples))
	for _, n := range samples {
		if !b.isHEVC {
			if h264NaluType(n) == naluH264TypeSEI && !b.Filter.KeepAVCNaluSEI {
				continue
			}
			if h264NaluType(n) == naluH264TypeP && !b.Filter.KeepBFrame && isH264BSlice(n) {
				continue
			}
		} else {
			if !b.Filter.KeepBFrame && !isH265IRAP(n) && isH265BSlice(n) {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// buildParameterSetPacket emits the SPS+PPS(+VPS)-only STAP-A/aggregation
// packet that precedes an IDR/IRAP frame (spec §4.6, matching the original's
// package_stap_a: parameter sets only, the IDR sample itself follows through
// the normal per-NALU path).
func (b *RTPBuilder) buildParameterSetPacket(track *TrackDescription, ts uint32) (*RtpPacket, error) {
	var nalus [][]byte
	if b.isHEVC {
		if len(b.vps) == 0 || len(b.sps) == 0 || len(b.pps) == 0 {
			return nil, nil
		}
		nalus = [][]byte{b.vps, b.sps, b.pps}
	} else {
		if len(b.sps) == 0 || len(b.pps) == 0 {
			return nil, nil
		}
		nalus = [][]byte{b.sps, b.pps}
	}

	var payload []byte
	tag := PayloadSTAPA
	if b.isHEVC {
		tag = PayloadSTAPHEVC
		payload = append(payload, byte(48<<1)&0xFE, 0x01) // HEVC aggregation packet NAL header, type=48
	} else {
		payload = append(payload, (0<<5)|naluH264TypeSTAPA)
	}
	for _, n := range nalus {
		payload = append(payload, byte(len(n)>>8), byte(len(n)))
		payload = append(payload, n...)
	}

	pkt := &RtpPacket{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    track.Primary.PayloadType,
			SequenceNumber: b.videoSeq,
			Timestamp:      ts,
			SSRC:           track.SSRC,
		},
		Frame:   FrameVideo,
		Tag:     tag,
		Payload: payload,
	}
	b.videoSeq++
	return pkt, nil
}

// packageOne emits sample as a single-NALU RTP packet, or as a run of FU-A/
// FU-HEVC fragments when it exceeds MaxRTPPayloadSize.
func (b *RTPBuilder) packageOne(track *TrackDescription, ts uint32, sample []byte) []*RtpPacket {
	if len(sample) <= MaxRTPPayloadSize {
		pkt := &RtpPacket{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    track.Primary.PayloadType,
				SequenceNumber: b.videoSeq,
				Timestamp:      ts,
				SSRC:           track.SSRC,
			},
			Frame:   FrameVideo,
			Tag:     PayloadRaw,
			Payload: sample,
		}
		b.videoSeq++
		return []*RtpPacket{pkt}
	}
	return b.packageFU(track, ts, sample)
}

// packageFU fragments sample into FU-A (AVC) or FU-HEVC fragments of at most
// MaxRTPPayloadSize bytes each, with correct start/end bits (RFC 6184 §5.8,
// RFC 7798 §4.4.3).
func (b *RTPBuilder) packageFU(track *TrackDescription, ts uint32, sample []byte) []*RtpPacket {
	var pkts []*RtpPacket
	if !b.isHEVC {
		indicator := (sample[0] & 0xE0) | naluH264TypeFUA
		naluType := sample[0] & 0x1F
		body := sample[1:]
		for len(body) > 0 {
			n := len(body)
			if n > MaxRTPPayloadSize-2 {
				n = MaxRTPPayloadSize - 2
			}
			chunk := body[:n]
			body = body[n:]
			header := naluType
			if len(pkts) == 0 {
				header |= 0x80 // start
			}
			if len(body) == 0 {
				header |= 0x40 // end
			}
			payload := make([]byte, 0, 2+len(chunk))
			payload = append(payload, indicator, header)
			payload = append(payload, chunk...)
			pkts = append(pkts, b.rawVideoPacket(track, ts, PayloadFUA, payload))
		}
		return pkts
	}

	naluType := h265NaluType(sample)
	fuHeaderNAL := byte(49<<1) & 0xFE
	body := sample[2:]
	for len(body) > 0 {
		n := len(body)
		if n > MaxRTPPayloadSize-3 {
			n = MaxRTPPayloadSize - 3
		}
		chunk := body[:n]
		body = body[n:]
		fuHeader := naluType
		if len(pkts) == 0 {
			fuHeader |= 0x80
		}
		if len(body) == 0 {
			fuHeader |= 0x40
		}
		payload := make([]byte, 0, 3+len(chunk))
		payload = append(payload, fuHeaderNAL, sample[1], fuHeader)
		payload = append(payload, chunk...)
		pkts = append(pkts, b.rawVideoPacket(track, ts, PayloadFUHEVC, payload))
	}
	return pkts
}

func (b *RTPBuilder) rawVideoPacket(track *TrackDescription, ts uint32, tag PayloadTag, payload []byte) *RtpPacket {
	pkt := &RtpPacket{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    track.Primary.PayloadType,
			SequenceNumber: b.videoSeq,
			Timestamp:      ts,
			SSRC:           track.SSRC,
		},
		Frame:   FrameVideo,
		Tag:     tag,
		Payload: payload,
	}
	b.videoSeq++
	return pkt
}

// mergeNalus concatenates samples AVCC-style (4-byte big-endian length
// prefix + NALU) into one synthetic NALU payload for the merge-nalus policy.
func mergeNalus(samples [][]byte) []byte {
	total := 0
	for _, n := range samples {
		total += 4 + len(n)
	}
	out := make([]byte, 0, total)
	for _, n := range samples {
		l := uint32(len(n))
		out = append(out, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
		out = append(out, n...)
	}
	return out
}

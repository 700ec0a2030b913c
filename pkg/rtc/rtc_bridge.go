package rtc

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/srs-core/mediacore/pkg/errs"
	"github.com/srs-core/mediacore/pkg/logger"
	"github.com/srs-core/mediacore/pkg/media"
	"github.com/srs-core/mediacore/pkg/source"
)

// rtcBridgePLIInterval is the RTC-bridge PLI tick of spec §4.1 "Bridge (RTC
// source → other)": "the source subscribes a 100ms timer that periodically
// issues PLI to the RTC publisher so the bridged RTMP output restarts on a
// keyframe."
const rtcBridgePLIInterval = 100 * time.Millisecond

// TargetLookup resolves the RTMP StreamSource a bridged RTC publish should
// forward reassembled frames into. It is called by URL on each frame rather
// than stored as a back-pointer, breaking the source↔bridge↔source cycle
// (spec §9 "Cyclic references").
type TargetLookup func(url string) (*source.StreamSource, bool)

// RTCBridge adapts one logical stream between its RTMP StreamSource and the
// RTC media plane (spec §4.1 Bridge, §4.3/§4.4/§4.5/§4.6). It implements
// source.Bridge for the RTMP→RTC direction (BuildAudio/BuildVideo, fanned
// out to RTC subscribers via PlayStream) and exposes OnRTP for the RTC→RTMP
// direction (frame reassembly, forwarded into the target RTMP source).
type RTCBridge struct {
	logger *logger.Logger

	targetURL string
	lookup    TargetLookup

	builder *RTPBuilder
	play    *PlayStream

	videoCache    *VideoPacketCache
	frameDetector *FrameDetector
	audioJitter   *AudioJitterBuffer

	pli           *PLIWorker
	publisherSSRC uint32

	ctx    context.Context
	cancel context.CancelFunc
}

var _ source.Bridge = (*RTCBridge)(nil)

// rtcBridgePLIHandler adapts PublishStreamTransport-style RTCP emission into
// the PLIWorker's handler contract.
type rtcBridgePLIHandler struct {
	sendPLI func(mediaSSRC uint32) error
}

func (h *rtcBridgePLIHandler) DoRequestKeyframe(ssrc uint32, _ string) error {
	return h.sendPLI(ssrc)
}

// NewRTCBridge constructs a bridge targeting targetURL, resolved through
// lookup on each reassembled frame. sendPLI emits a PLI RTCP packet to the
// RTC publisher identified by mediaSSRC.
func NewRTCBridge(ctx context.Context, log *logger.Logger, targetURL string, lookup TargetLookup, desc *StreamDescription, filter NALUFilter, transcoder AudioTranscoder, sendPLI func(mediaSSRC uint32) error) *RTCBridge {
	ctx, cancel := context.WithCancel(ctx)
	b := &RTCBridge{
		logger:        log.With("component", "rtc_bridge", "url", targetURL),
		targetURL:     targetURL,
		lookup:        lookup,
		builder:       NewRTPBuilder(desc, filter, transcoder),
		play:          NewPlayStream(log),
		videoCache:    NewVideoPacketCache(),
		audioJitter:   NewAudioJitterBuffer(),
		ctx:           ctx,
		cancel:        cancel,
	}
	b.frameDetector = NewFrameDetector(b.videoCache)
	b.pli = NewPLIWorker(ctx, log, &rtcBridgePLIHandler{sendPLI: sendPLI})
	return b
}

// PlayStream exposes the RTC fan-out side, so callers can register RTC
// subscriber SendTracks built from the same StreamDescription.
func (b *RTCBridge) PlayStream() *PlayStream { return b.play }

// SetPublisherSSRC records which media SSRC the 100ms PLI timer targets,
// i.e. the RTC publisher feeding this bridge's RTC→RTMP direction.
func (b *RTCBridge) SetPublisherSSRC(ssrc uint32) {
	b.publisherSSRC = ssrc
}

// Start launches the PLI worker and the 100ms PLI timer (spec §4.1).
func (b *RTCBridge) Start() {
	b.pli.Start()
	go b.pliTimerLoop()
}

// Stop halts the PLI timer and worker.
func (b *RTCBridge) Stop() {
	b.cancel()
	b.pli.Stop()
}

func (b *RTCBridge) pliTimerLoop() {
	ticker := time.NewTicker(rtcBridgePLIInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.pli.RequestKeyframe(b.publisherSSRC, "rtc-bridge")
		}
	}
}

// Initialize satisfies source.Bridge: RTMP negotiated the given codecs, so
// the RTP builder is told whether the video track is HEVC.
func (b *RTCBridge) Initialize(videoCodec, _ media.Codec) error {
	b.builder.isHEVC = videoCodec == media.CodecHEVC
	return nil
}

// OnAudio satisfies source.Bridge: transcode one RTMP AAC access unit into
// RTP Opus packets and fan them to every RTC subscriber (spec §4.6).
func (b *RTCBridge) OnAudio(pkt *media.MediaPacket) error {
	if pkt.IsSequenceHeader {
		return nil
	}
	sampleRate, channelConfig, profile := 44100, uint8(2), uint8(2)
	pkts, err := b.builder.BuildAudio(uint32(pkt.Timestamp), pkt.Payload, sampleRate, channelConfig, profile)
	if err != nil {
		return err
	}
	return b.fanOut(pkts)
}

// OnVideo satisfies source.Bridge: split RMTP AVCC video payload into NALU
// samples, packetize into RTP, and fan out. A sequence header instead
// updates the builder's cached decoder configuration record.
func (b *RTCBridge) OnVideo(pkt *media.MediaPacket) error {
	if pkt.IsSequenceHeader {
		return b.onVideoSequenceHeader(pkt)
	}
	samples, err := splitAVCCSamples(pkt.Payload)
	if err != nil {
		return err
	}
	pkts, err := b.builder.BuildVideo(uint32(pkt.Timestamp), samples, pkt.IsKeyframe)
	if err != nil {
		return err
	}
	return b.fanOut(pkts)
}

func (b *RTCBridge) onVideoSequenceHeader(pkt *media.MediaPacket) error {
	if pkt.Codec == media.CodecHEVC {
		vps, sps, pps, err := parseHVCDecoderConfig(pkt.Payload)
		if err != nil {
			return err
		}
		b.builder.SetDecoderConfig(vps, sps, pps, true)
		return nil
	}
	sps, pps, err := parseAVCDecoderConfig(pkt.Payload)
	if err != nil {
		return err
	}
	b.builder.SetDecoderConfig(nil, sps, pps, false)
	return nil
}

func (b *RTCBridge) fanOut(pkts []*RtpPacket) error {
	for _, pkt := range pkts {
		track := b.builder.Desc.FindBySSRC(pkt.Header.SSRC)
		if track == nil {
			continue
		}
		st := b.play.trackBySSRC(pkt.Header.SSRC)
		if st == nil || !st.Active {
			continue
		}
		if err := st.Send(pkt); err != nil {
			return err
		}
	}
	return nil
}

// OnRTP consumes one RTP packet from the RTC publisher and, once reassembly
// completes a frame, forwards it into the target RTMP source (spec §4.1
// "An optional bridge object consumes each incoming RTP packet and may
// forward to RTMP").
func (b *RTCBridge) OnRTP(pkt *RtpPacket) error {
	switch pkt.Frame {
	case FrameVideo:
		return b.onVideoRTP(pkt)
	case FrameAudio:
		return b.onAudioRTP(pkt)
	default:
		return nil
	}
}

func (b *RTCBridge) onVideoRTP(pkt *RtpPacket) error {
	b.videoCache.Write(pkt)
	if isKeyframeStart(pkt, b.builder.isHEVC) {
		b.frameDetector.OnKeyframe(pkt)
	}
	// DetectFrame is re-run with tail+1 after each ready frame, per its own
	// contract, to pick up any further frame completed in the same burst.
	received := pkt.SequenceNumber()
	for {
		ready, header, tail, err := b.frameDetector.DetectFrame(received)
		if err != nil {
			return err
		}
		if !ready {
			return nil
		}
		if err := b.emitVideoFrame(header, tail); err != nil {
			return err
		}
		received = tail + 1
	}
}

func (b *RTCBridge) emitVideoFrame(header, tail uint16) error {
	target, ok := b.lookup(b.targetURL)
	if !ok {
		return nil
	}
	var payload []byte
	var ts uint32
	var isKey bool
	for seq := header; ; seq++ {
		p, ok := b.videoCache.Get(seq)
		if ok {
			ts = p.Header.Timestamp
			if isKeyframeStart(p, b.builder.isHEVC) {
				isKey = true
			}
			payload = append(payload, avccLengthPrefixed(p.Payload)...)
		}
		if seq == tail {
			break
		}
	}
	codec := media.CodecAVC
	if b.builder.isHEVC {
		codec = media.CodecHEVC
	}
	mp := media.New(int64(ts/90), media.MessageTypeVideo, codec, payload, false, isKey)
	return target.OnVideo(mp)
}

func (b *RTCBridge) onAudioRTP(pkt *RtpPacket) error {
	ready := b.audioJitter.ProcessPacket(pkt)
	if len(ready) == 0 {
		return nil
	}
	target, ok := b.lookup(b.targetURL)
	if !ok {
		return nil
	}
	for _, p := range ready {
		mp := media.New(int64(p.Header.Timestamp/48), media.MessageTypeAudio, media.CodecAAC, p.Payload, false, false)
		if err := target.OnAudio(mp); err != nil {
			return err
		}
	}
	return nil
}

// isKeyframeStart reports whether pkt opens a keyframe: either the STAP-A/
// STAP-HEVC parameter-set packet the builder always emits ahead of an IDR/
// IRAP frame, or (when no parameter sets were cached to build one) the IDR/
// IRAP NALU itself carried raw.
func isKeyframeStart(pkt *RtpPacket, isHEVC bool) bool {
	switch pkt.Tag {
	case PayloadSTAPA, PayloadSTAPHEVC:
		return true
	case PayloadRaw:
		if isHEVC {
			return isH265IRAP(pkt.Payload)
		}
		return isH264IDR(pkt.Payload)
	default:
		return false
	}
}

// splitAVCCSamples splits an AVCC-framed (4-byte big-endian length prefix +
// NALU, repeated) RTMP video tag payload into individual NALU samples.
func splitAVCCSamples(payload []byte) ([][]byte, error) {
	var samples [][]byte
	for len(payload) > 0 {
		if len(payload) < 4 {
			return nil, errs.New(errs.KindRTPMuxer, "truncated avcc length prefix")
		}
		n := binary.BigEndian.Uint32(payload[:4])
		payload = payload[4:]
		if uint32(len(payload)) < n {
			return nil, errs.New(errs.KindRTPMuxer, "truncated avcc nalu")
		}
		samples = append(samples, payload[:n])
		payload = payload[n:]
	}
	return samples, nil
}

// avccLengthPrefixed wraps one NALU in a 4-byte big-endian length prefix,
// the inverse of splitAVCCSamples, used to reassemble an AVCC frame for the
// RMTP-facing MediaPacket.
func avccLengthPrefixed(nalu []byte) []byte {
	out := make([]byte, 4+len(nalu))
	binary.BigEndian.PutUint32(out, uint32(len(nalu)))
	copy(out[4:], nalu)
	return out
}

// parseAVCDecoderConfig extracts the first SPS and PPS NALUs from an
// AVCDecoderConfigurationRecord (ISO/IEC 14496-15 §5.2.4.1).
func parseAVCDecoderConfig(rec []byte) (sps, pps []byte, err error) {
	if len(rec) < 6 {
		return nil, nil, errs.New(errs.KindRTPMuxer, "short avc decoder config")
	}
	numSPS := int(rec[5] & 0x1F)
	pos := 6
	for i := 0; i < numSPS; i++ {
		if pos+2 > len(rec) {
			return nil, nil, errs.New(errs.KindRTPMuxer, "truncated avc decoder config sps")
		}
		l := int(binary.BigEndian.Uint16(rec[pos:]))
		pos += 2
		if pos+l > len(rec) {
			return nil, nil, errs.New(errs.KindRTPMuxer, "truncated avc decoder config sps body")
		}
		if i == 0 {
			sps = rec[pos : pos+l]
		}
		pos += l
	}
	if pos >= len(rec) {
		return sps, nil, nil
	}
	numPPS := int(rec[pos])
	pos++
	for i := 0; i < numPPS; i++ {
		if pos+2 > len(rec) {
			return sps, nil, errs.New(errs.KindRTPMuxer, "truncated avc decoder config pps")
		}
		l := int(binary.BigEndian.Uint16(rec[pos:]))
		pos += 2
		if pos+l > len(rec) {
			return sps, nil, errs.New(errs.KindRTPMuxer, "truncated avc decoder config pps body")
		}
		if i == 0 {
			pps = rec[pos : pos+l]
		}
		pos += l
	}
	return sps, pps, nil
}

// parseHVCDecoderConfig extracts the first VPS/SPS/PPS NALUs from an
// HEVCDecoderConfigurationRecord (ISO/IEC 14496-15 §8.3.3.1.2), whose
// arrays are tagged by NAL unit type rather than fixed SPS/PPS slots.
func parseHVCDecoderConfig(rec []byte) (vps, sps, pps []byte, err error) {
	if len(rec) < 23 {
		return nil, nil, nil, errs.New(errs.KindRTPMuxer, "short hevc decoder config")
	}
	numArrays := int(rec[22])
	pos := 23
	for a := 0; a < numArrays; a++ {
		if pos+3 > len(rec) {
			return vps, sps, pps, errs.New(errs.KindRTPMuxer, "truncated hevc decoder config array header")
		}
		naluType := rec[pos] & 0x3F
		numNalus := int(binary.BigEndian.Uint16(rec[pos+1:]))
		pos += 3
		for n := 0; n < numNalus; n++ {
			if pos+2 > len(rec) {
				return vps, sps, pps, errs.New(errs.KindRTPMuxer, "truncated hevc decoder config nalu header")
			}
			l := int(binary.BigEndian.Uint16(rec[pos:]))
			pos += 2
			if pos+l > len(rec) {
				return vps, sps, pps, errs.New(errs.KindRTPMuxer, "truncated hevc decoder config nalu body")
			}
			nalu := rec[pos : pos+l]
			switch naluType {
			case naluH265TypeVPS:
				if vps == nil {
					vps = nalu
				}
			case naluH265TypeSPS:
				if sps == nil {
					sps = nalu
				}
			case naluH265TypePPS:
				if pps == nil {
					pps = nalu
				}
			}
			pos += l
		}
	}
	return vps, sps, pps, nil
}

package mpegts

import (
	"bytes"

	"github.com/srs-core/mediacore/pkg/errs"
)

// CodecSet names the current audio/video codecs of a stream; TsContext emits
// a fresh PAT+PMT whenever this changes (spec §4.11 encoder flow step 2).
type CodecSet struct {
	Video Codec
	Audio Codec
}

func (c CodecSet) hasVideo() bool { return c.Video != CodecReserved }

// TsMessage is a fully reassembled PES payload decoded from one PID's TS
// packets (spec §3 TsMessage).
type TsMessage struct {
	PID      uint16
	StreamID uint8
	Dts      uint64
	Pts      uint64
	IsVideo  bool
	Payload  []byte
}

// tsChannel is the PES reassembly buffer for one PID (spec §3 TsContext/
// TsChannel).
type tsChannel struct {
	pid        uint16
	isVideo    bool
	started    bool
	hasCC      bool
	cc         uint8
	buf        []byte
	headerSeen bool
	lenKnown   bool
	totalLen   int
}

func (ch *tsChannel) tryParseLength() {
	if ch.headerSeen || len(ch.buf) < 6 {
		return
	}
	pesLen := int(ch.buf[4])<<8 | int(ch.buf[5])
	ch.headerSeen = true
	if pesLen > 0 {
		ch.lenKnown = true
		ch.totalLen = 6 + pesLen
	} else {
		ch.lenKnown = false
	}
}

func (ch *tsChannel) reap() (*TsMessage, error) {
	buf := ch.buf
	ch.buf = nil
	ch.started = false
	ch.headerSeen = false
	ch.lenKnown = false

	streamID, dts, pts, payloadOff, err := decodePESHeader(buf)
	if err != nil {
		return nil, err
	}
	return &TsMessage{
		PID:      ch.pid,
		StreamID: streamID,
		Dts:      dts,
		Pts:      pts,
		IsVideo:  ch.isVideo,
		Payload:  buf[payloadOff:],
	}, nil
}

// feed advances PES reassembly with one TS packet's payload (spec §4.11 PES
// reassembly invariants).
func (ch *tsChannel) feed(h Header, payload []byte) (*TsMessage, error) {
	if h.PayloadUnitStartIndicator {
		var completed *TsMessage
		var completedErr error
		if ch.started && !ch.lenKnown {
			completed, completedErr = ch.reap()
		}
		ch.buf = append([]byte(nil), payload...)
		ch.started = true
		ch.hasCC = true
		ch.cc = h.ContinuityCounter
		ch.tryParseLength()

		if completed != nil || completedErr != nil {
			return completed, completedErr
		}
		if ch.lenKnown && len(ch.buf) >= ch.totalLen {
			return ch.reap()
		}
		return nil, nil
	}

	if !ch.started {
		return nil, errs.New(errs.KindTSPESBoundary, "PES continuation with no fresh message")
	}
	expected := (ch.cc + 1) & 0x0F
	if h.ContinuityCounter != expected {
		ch.started = false
		ch.buf = nil
		return nil, errs.New(errs.KindTSPESBoundary, "PES continuity counter discontinuity")
	}
	ch.cc = h.ContinuityCounter
	ch.buf = append(ch.buf, payload...)
	ch.tryParseLength()
	if ch.lenKnown && len(ch.buf) >= ch.totalLen {
		return ch.reap()
	}
	return nil, nil
}

// TsContext owns encoder continuity-counter state and the decoder's
// PID→tsChannel map plus codec state (spec §3 TsContext).
type TsContext struct {
	// encoder state
	codecs   CodecSet
	haveCodecs bool
	patCC    uint8
	pmtCC    uint8
	videoCC  uint8
	audioCC  uint8

	// decoder state
	pat      *PAT
	pmt      *PMT
	channels map[uint16]*tsChannel
}

func NewTsContext() *TsContext {
	return &TsContext{channels: make(map[uint16]*tsChannel)}
}

// Encode packages one media frame into TS packets, emitting a fresh PAT+PMT
// first if the codec set changed since the last call (spec §4.11 encoder
// flow). isVideo selects PidVideo/PidAudio and StreamIDVideo/StreamIDAudio.
func (c *TsContext) Encode(codecs CodecSet, frame *Frame, isVideo bool) ([]byte, error) {
	if codecs.Video == CodecReserved && codecs.Audio == CodecReserved {
		return nil, errs.New(errs.KindTSContextNotReady, "both streams reserved")
	}

	var out bytes.Buffer

	if !c.haveCodecs || codecs != c.codecs {
		c.codecs = codecs
		c.haveCodecs = true

		patPkt, err := writePSIPacket(PidPAT, &c.patCC, EncodePAT())
		if err != nil {
			return nil, err
		}
		out.Write(patPkt)

		var streams []PMTStream
		if codecs.hasVideo() {
			streams = append(streams, PMTStream{StreamType: codecs.Video.streamType(), PID: PidVideo})
		}
		if codecs.Audio != CodecReserved {
			streams = append(streams, PMTStream{StreamType: codecs.Audio.streamType(), PID: PidAudio})
		}
		pmtPkt, err := writePSIPacket(PidPMT, &c.pmtCC, EncodePMT(streams))
		if err != nil {
			return nil, err
		}
		out.Write(pmtPkt)
	}

	pid := uint16(PidAudio)
	streamID := uint8(StreamIDAudio)
	cc := &c.audioCC
	pesLenUnknown := false
	writePCR := !codecs.hasVideo() // pure audio: always write PCR
	if isVideo {
		pid = PidVideo
		streamID = StreamIDVideo
		cc = &c.videoCC
		pesLenUnknown = true
		writePCR = frame.Key
	}

	pesHeader := encodePESHeader(streamID, frame.Dts, frame.Pts, true, len(frame.Raw), pesLenUnknown)
	payload := append(pesHeader, frame.Raw...)

	pcr := frame.Dts
	for _, pkt := range writePESPackets(pid, cc, payload, writePCR, pcr, frame.Key) {
		out.Write(pkt)
	}

	return out.Bytes(), nil
}

// Decode parses one 188-byte TS packet, routing PAT/PMT to context state and
// elementary-stream payloads to the matching tsChannel's PES reassembly
// (spec §4.11 decoder flow). Returns a non-nil TsMessage only when a PES
// message completes on this call.
func (c *TsContext) Decode(pkt []byte) (*TsMessage, error) {
	h, off, err := ParseHeader(pkt)
	if err != nil {
		return nil, err
	}
	if !h.HasPayload {
		return nil, nil
	}
	payload := pkt[off:]

	switch {
	case h.PID == PidPAT:
		var body []byte
		if len(payload) > 0 {
			body = payload[1:] // skip pointer_field
		}
		pat, err := DecodePAT(body)
		if err != nil {
			return nil, err
		}
		c.pat = pat
		return nil, nil

	case c.pat != nil && h.PID == c.pat.ProgramMapPID:
		var body []byte
		if len(payload) > 0 {
			body = payload[1:]
		}
		pmt, err := DecodePMT(body)
		if err != nil {
			return nil, err
		}
		c.pmt = pmt
		for _, s := range pmt.Streams {
			if _, ok := c.channels[s.PID]; !ok {
				c.channels[s.PID] = &tsChannel{pid: s.PID, isVideo: s.StreamType == StreamTypeAVC || s.StreamType == StreamTypeHEVC}
			}
		}
		return nil, nil

	default:
		ch, ok := c.channels[h.PID]
		if !ok {
			return nil, nil // unknown PID, ignore
		}
		return ch.feed(h, payload)
	}
}

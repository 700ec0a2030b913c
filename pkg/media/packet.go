// Package media defines MediaPacket, the universal in-process carrier for
// audio/video/metadata moving through the stream routing plane (spec §3).
package media

// MessageType classifies a MediaPacket's payload.
type MessageType int

const (
	MessageTypeAudio MessageType = iota
	MessageTypeVideo
	MessageTypeScript // metadata / onMetaData
	MessageTypeAggregate
)

// Codec identifies the wire codec of an audio or video payload.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecAAC
	CodecMP3
	CodecAVC
	CodecHEVC
)

// MediaPacket is the universal carrier for one RTMP-style message moving
// through a StreamSource. Payload is a reference-counted byte buffer: copy()
// shares the payload and duplicates only the header fields, matching the
// ownership model in spec §5 ("Consumers may hold copies without
// coordinating with the publisher").
type MediaPacket struct {
	// Timestamp is milliseconds, monotone within a stream.
	Timestamp int64

	Type  MessageType
	Codec Codec

	// Payload is shared; never mutate in place after construction.
	Payload []byte

	IsSequenceHeader bool
	IsKeyframe       bool

	refs *int32
}

// New constructs a fresh MediaPacket owning payload (not copied).
func New(ts int64, typ MessageType, codec Codec, payload []byte, seqHeader, keyframe bool) *MediaPacket {
	n := int32(1)
	return &MediaPacket{
		Timestamp:        ts,
		Type:             typ,
		Codec:            codec,
		Payload:          payload,
		IsSequenceHeader: seqHeader,
		IsKeyframe:       keyframe,
		refs:             &n,
	}
}

// Copy returns a new header sharing the same payload slice. Cheap: no
// allocation of the payload, only of the header struct.
func (p *MediaPacket) Copy() *MediaPacket {
	if p.refs != nil {
		*p.refs++
	}
	cp := *p
	return &cp
}

// Release drops one reference. Callers that receive packets via Copy should
// call Release when done; the last release allows payload reuse by a pool.
// The core never requires synchronization here: per spec §5, a MediaPacket
// is only ever mutated by the single cooperative task that currently owns
// it between yield points.
func (p *MediaPacket) Release() {
	if p.refs != nil {
		*p.refs--
	}
}

// IsAudio / IsVideo are convenience predicates used throughout the source
// and bridge packages.
func (p *MediaPacket) IsAudio() bool { return p.Type == MessageTypeAudio }
func (p *MediaPacket) IsVideo() bool { return p.Type == MessageTypeVideo }

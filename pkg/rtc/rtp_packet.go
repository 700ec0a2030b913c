// Package rtc implements the WebRTC media plane (spec §4.3-4.10): the
// DTLS/SRTP transport abstraction, RTMP↔RTC bridging, and the publish/play
// session lifecycle.
package rtc

import (
	"github.com/pion/rtp"
)

// PayloadTag tags the variant carried by an RtpPacket's payload, replacing
// the original codebase's dynamic_cast-based dispatch with an exhaustive Go
// sum type (spec §9 "Replacing dynamic dispatch for payload tags").
type PayloadTag int

const (
	PayloadRaw PayloadTag = iota
	PayloadSTAPA
	PayloadFUA
	PayloadSTAPHEVC
	PayloadFUHEVC
	PayloadOpus
	PayloadRED
	PayloadRTX
)

// FrameType classifies an RtpPacket as carrying audio or video (spec §3 RtpPacket).
type FrameType int

const (
	FrameAudio FrameType = iota
	FrameVideo
)

// RtpPacket is the in-process carrier for one RTP packet, wrapping
// pion/rtp.Packet with the spec's additional fields (spec §3 RtpPacket).
// Ownership is unique; Copy deep-copies including the payload.
type RtpPacket struct {
	Header rtp.Header

	// AvsyncTime is a monotone millisecond clock derived from sender-report
	// NTP correlation (spec §3).
	AvsyncTime int64

	Tag       PayloadTag
	Frame     FrameType
	NaluType  uint8 // valid only for H.264/H.265 tags

	Payload []byte
}

// Copy deep-copies the packet, including the payload, matching the unique
// ownership model of spec §5.
func (p *RtpPacket) Copy() *RtpPacket {
	cp := *p
	cp.Payload = append([]byte(nil), p.Payload...)
	cp.Header.CSRC = append([]uint32(nil), p.Header.CSRC...)
	return &cp
}

// SequenceNumber is a convenience accessor used throughout the NACK/ring
// buffer code.
func (p *RtpPacket) SequenceNumber() uint16 { return p.Header.SequenceNumber }

// Marshal serializes header+payload into wire-format RTP bytes.
func (p *RtpPacket) Marshal() ([]byte, error) {
	pkt := rtp.Packet{Header: p.Header, Payload: p.Payload}
	return pkt.Marshal()
}

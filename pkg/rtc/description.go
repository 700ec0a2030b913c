package rtc

// Direction is an SDP-negotiated media direction.
type Direction string

const (
	DirRecvOnly Direction = "recvonly"
	DirSendOnly Direction = "sendonly"
	DirSendRecv Direction = "sendrecv"
	DirInactive Direction = "inactive"
)

// Payload describes one negotiated RTP payload type.
type Payload struct {
	PayloadType uint8
	CodecName   string // "opus", "H264", "H265", "red", "rtx", "ulpfec"
	ClockRate   uint32
	Channels    uint16
	Fmtp        string

	// Apt is the RTX "apt" fmtp parameter: the primary payload type this RTX
	// stream retransmits. Only meaningful when CodecName == "rtx".
	Apt uint8
}

// TrackDescription describes one audio or video track of an RTC connection
// (spec §3 StreamDescription). A track is matched by any of its three SSRCs.
type TrackDescription struct {
	Type string // "audio" | "video"
	ID   string
	SSRC uint32

	RtxSSRC *uint32
	FecSSRC *uint32

	Direction  Direction
	Extensions map[int]string // extension-id -> URI
	Mid        string
	Msid       string
	Active     bool

	Primary Payload
	RED     *Payload
	RTX     *Payload
	ULPFEC  *Payload
}

// MatchesSSRC reports whether ssrc names this track via its primary, RTX,
// or FEC SSRC (spec §3 invariant: "a track is matched by any of its three SSRCs").
func (t *TrackDescription) MatchesSSRC(ssrc uint32) bool {
	if t.SSRC == ssrc {
		return true
	}
	if t.RtxSSRC != nil && *t.RtxSSRC == ssrc {
		return true
	}
	if t.FecSSRC != nil && *t.FecSSRC == ssrc {
		return true
	}
	return false
}

// StreamDescription is exactly one optional audio track description plus an
// ordered list of video track descriptions (spec §3 StreamDescription).
type StreamDescription struct {
	Audio *TrackDescription
	Video []*TrackDescription
}

// FindByCodecName returns the first track (audio or video) whose primary
// codec name matches, used by the RTP builder to locate the negotiated
// Opus track (spec §4.6).
func (d *StreamDescription) FindByCodecName(name string) *TrackDescription {
	if d.Audio != nil && d.Audio.Primary.CodecName == name {
		return d.Audio
	}
	for _, v := range d.Video {
		if v.Primary.CodecName == name {
			return v
		}
	}
	return nil
}

// FindBySSRC returns the track (audio or any video) matching ssrc via any of
// its three SSRCs.
func (d *StreamDescription) FindBySSRC(ssrc uint32) *TrackDescription {
	if d.Audio != nil && d.Audio.MatchesSSRC(ssrc) {
		return d.Audio
	}
	for _, v := range d.Video {
		if v.MatchesSSRC(ssrc) {
			return v
		}
	}
	return nil
}

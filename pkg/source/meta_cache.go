// Package source implements the stream routing plane (spec §4.1-4.2): one
// StreamSource per publisher URL, fanning MediaPackets to bounded consumer
// queues, a gop cache, and an origin hub.
package source

import (
	"bytes"

	"github.com/srs-core/mediacore/pkg/media"
)

// MetaCache holds the current metadata message plus the current audio and
// video sequence headers (spec §3 MetaCache). IsDuplicateXSH must be called
// against the still-current SH *before* UpdateXSH overwrites it, so the
// first SH ever received (current == nil) always compares as non-duplicate
// (spec §4.1 Sequence-header duplicate suppression).
type MetaCache struct {
	Meta *media.MediaPacket

	AudioSH *media.MediaPacket
	VideoSH *media.MediaPacket
}

// UpdateMeta replaces the cached metadata message.
func (c *MetaCache) UpdateMeta(pkt *media.MediaPacket) {
	c.Meta = pkt
}

// UpdateAudioSH installs pkt as the current audio sequence header.
func (c *MetaCache) UpdateAudioSH(pkt *media.MediaPacket) {
	c.AudioSH = pkt
}

// UpdateVideoSH installs pkt as the current video sequence header.
func (c *MetaCache) UpdateVideoSH(pkt *media.MediaPacket) {
	c.VideoSH = pkt
}

// IsDuplicateAudioSH reports whether pkt's bytes equal the current cached
// audio SH — the reduce-sequence-header rule of spec §4.1: "kept SH bytes
// equal current SH bytes AND previous_sh not null." Must be called before
// UpdateAudioSH overwrites AudioSH; a nil AudioSH (no SH cached yet) means
// pkt is the first SH and is never a duplicate.
func (c *MetaCache) IsDuplicateAudioSH(pkt *media.MediaPacket) bool {
	return c.AudioSH != nil && bytes.Equal(c.AudioSH.Payload, pkt.Payload)
}

// IsDuplicateVideoSH is IsDuplicateAudioSH's video counterpart.
func (c *MetaCache) IsDuplicateVideoSH(pkt *media.MediaPacket) bool {
	return c.VideoSH != nil && bytes.Equal(c.VideoSH.Payload, pkt.Payload)
}

// Clear resets all three slots, used when a publisher disconnects.
func (c *MetaCache) Clear() {
	*c = MetaCache{}
}

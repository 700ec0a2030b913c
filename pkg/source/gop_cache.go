package source

import "github.com/srs-core/mediacore/pkg/media"

// PureAudioGuessCount is SRS_PURE_AUDIO_GUESS_COUNT: the number of audio
// packets received in a row since the last video packet after which the gop
// cache gives up and declares the stream pure-audio (spec §3 GopCache
// invariant (b), kept as the original magic number per spec §9).
const PureAudioGuessCount = 115

// DefaultMaxGopCacheFrames bounds a single GOP's packet count; exceeding it
// clears the cache entirely (spec §3 invariant (c); default taken from the
// original's vhost-configurable cap, see SPEC_FULL.md).
const DefaultMaxGopCacheFrames = 2500

// GopCache holds MediaPacket references from the most recent video keyframe
// onward, for replay to newly attached consumers (spec §3 GopCache).
type GopCache struct {
	Enabled bool

	MaxFrames int // DefaultMaxGopCacheFrames if zero

	packets             []*media.MediaPacket
	audioAfterVideo     int
	videoPacketsCached  int
}

func NewGopCache(enabled bool) *GopCache {
	return &GopCache{Enabled: enabled, MaxFrames: DefaultMaxGopCacheFrames}
}

func (g *GopCache) maxFrames() int {
	if g.MaxFrames <= 0 {
		return DefaultMaxGopCacheFrames
	}
	return g.MaxFrames
}

// Empty reports whether the cache holds nothing.
func (g *GopCache) Empty() bool {
	return len(g.packets) == 0
}

// PureAudio reports whether the stream is currently believed to carry no
// video: no video packet has been cached since the cache was last cleared
// (spec §8 invariant 5: GopCache.empty() ⇒ pure_audio()).
func (g *GopCache) PureAudio() bool {
	return g.videoPacketsCached == 0
}

// Cache appends pkt to the gop cache, applying the clearing rules of spec §3.
func (g *GopCache) Cache(pkt *media.MediaPacket) {
	if !g.Enabled {
		return
	}

	if pkt.IsVideo() {
		if pkt.IsKeyframe {
			g.clearLocked()
		}
		g.audioAfterVideo = 0
		g.videoPacketsCached++
		g.packets = append(g.packets, pkt.Copy())
	} else if pkt.IsAudio() {
		g.audioAfterVideo++
		if g.audioAfterVideo > PureAudioGuessCount {
			g.clearLocked()
			return
		}
		g.packets = append(g.packets, pkt.Copy())
	} else {
		g.packets = append(g.packets, pkt.Copy())
	}

	if len(g.packets) > g.maxFrames() {
		g.clearLocked()
	}
}

func (g *GopCache) clearLocked() {
	for _, p := range g.packets {
		p.Release()
	}
	g.packets = nil
	g.audioAfterVideo = 0
	g.videoPacketsCached = 0
}

// Clear empties the cache (called on unpublish or explicit reset).
func (g *GopCache) Clear() {
	g.clearLocked()
}

// Dump returns copies of every cached packet in order, for replay to a new
// consumer (spec §4.1 consumer_dumps).
func (g *GopCache) Dump() []*media.MediaPacket {
	out := make([]*media.MediaPacket, len(g.packets))
	for i, p := range g.packets {
		out[i] = p.Copy()
	}
	return out
}

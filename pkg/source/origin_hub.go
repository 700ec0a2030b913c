package source

import (
	"strings"
	"time"

	"github.com/srs-core/mediacore/pkg/media"
)

// Sink is one downstream consumer of the origin hub's fan-out: HLS, DASH,
// DVR, a forwarder, NgExec, or HDS (spec §4.2 Origin Hub).
type Sink interface {
	OnAudio(pkt *media.MediaPacket) error
	OnVideo(pkt *media.MediaPacket) error
	CleanupDelay() time.Duration
}

// StatReporter receives the "wait for SH" codec-announcement callback,
// invoked exactly once per video sequence header (spec §4.2).
type StatReporter interface {
	OnVideoInfo(codec media.Codec, profile, level, width, height, bitrateKbps, fps int)
}

// VideoInfo is the decoded content of an AVC/HEVC sequence header, used to
// drive the single OnVideoInfo callback.
type VideoInfo struct {
	Codec     media.Codec
	Profile   int
	Level     int
	Width     int
	Height    int
	BitrateKbps int
	FPS       int
}

// ForwarderFactory resolves the dynamic backend list for a stream via an
// HTTP callback (spec §4.2 Forwarder creation). Implementations live outside
// this module's scope (§1 out-of-scope: HTTP API/callback hooks); only the
// interface is specified here.
type ForwarderFactory interface {
	ResolveForwarders(streamURL string) ([]string, error)
}

// OriginHub fans one publisher's stream to HLS/DASH/DVR/forwarder sinks and
// reports codec info exactly once per sequence header (spec §4.2).
type OriginHub struct {
	Stat StatReporter

	sinks            []Sink
	staticForwarders []string
	forwarderFactory ForwarderFactory

	videoSHReported bool
}

func NewOriginHub(stat StatReporter) *OriginHub {
	return &OriginHub{Stat: stat}
}

// AddSink registers a downstream consumer (HLS, DASH, DVR, ...).
func (h *OriginHub) AddSink(s Sink) {
	h.sinks = append(h.sinks, s)
}

// CleanupDelay is max(hls.cleanup_delay, dash.cleanup_delay, ...) over the
// registered sinks, zero when there are none (spec §4.2). StreamSource does
// not consult it: its die-at delay is its own CleanupDelay field.
func (h *OriginHub) CleanupDelay() time.Duration {
	var max time.Duration
	for _, s := range h.sinks {
		if d := s.CleanupDelay(); d > max {
			max = d
		}
	}
	return max
}

// OnAudio fans an audio packet to every sink, continuing past per-sink
// errors and returning the first one (spec §7 propagation rule for
// per-item loops).
func (h *OriginHub) OnAudio(pkt *media.MediaPacket) error {
	var firstErr error
	for _, s := range h.sinks {
		if err := s.OnAudio(pkt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OnVideo fans a video packet to every sink. On a video sequence header it
// also invokes Stat.OnVideoInfo exactly once (spec §4.2).
func (h *OriginHub) OnVideo(pkt *media.MediaPacket, info *VideoInfo) error {
	if pkt.IsSequenceHeader && !h.videoSHReported && h.Stat != nil && info != nil {
		h.Stat.OnVideoInfo(info.Codec, info.Profile, info.Level, info.Width, info.Height, info.BitrateKbps, info.FPS)
		h.videoSHReported = true
	}

	var firstErr error
	for _, s := range h.sinks {
		if err := s.OnVideo(pkt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Reset clears the "SH already reported" latch, called on unpublish so the
// next publish re-announces codec info.
func (h *OriginHub) Reset() {
	h.videoSHReported = false
}

// SetStaticForwarders configures config-supplied forward destinations.
func (h *OriginHub) SetStaticForwarders(urls []string) {
	h.staticForwarders = urls
}

// SetForwarderFactory wires the dynamic-backend HTTP callback collaborator.
func (h *OriginHub) SetForwarderFactory(f ForwarderFactory) {
	h.forwarderFactory = f
}

// ResolveForwarderDestinations returns the static list plus the dynamic
// backend list, rejecting any rtmps:// destination (spec §4.2 Forwarder
// creation).
func (h *OriginHub) ResolveForwarderDestinations(streamURL string) ([]string, error) {
	dests := append([]string(nil), h.staticForwarders...)

	if h.forwarderFactory != nil {
		dynamic, err := h.forwarderFactory.ResolveForwarders(streamURL)
		if err != nil {
			return nil, err
		}
		dests = append(dests, dynamic...)
	}

	out := dests[:0]
	for _, d := range dests {
		if strings.HasPrefix(d, "rtmps://") {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

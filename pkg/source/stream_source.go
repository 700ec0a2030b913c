package source

import (
	"log/slog"
	"sync"
	"time"

	"github.com/srs-core/mediacore/pkg/errs"
	"github.com/srs-core/mediacore/pkg/media"
)

// PublisherState is the StreamSource publish state machine (spec §4.1).
type PublisherState int

const (
	StateNotCreated PublisherState = iota
	StateDelivering
)

// DefaultCleanupDelay is the delay after on_unpublish / last consumer drop
// before stream_is_dead may report true (spec §5 Timers).
const DefaultCleanupDelay = 3 * time.Second

// Bridge consumes packets published on one StreamSource and may forward them
// to another protocol family's source, looked up by URL on demand rather
// than via a stored back-pointer, breaking the source↔bridge↔source cycle
// (spec §9 "Cyclic references").
type Bridge interface {
	Initialize(videoCodec, audioCodec media.Codec) error
	OnAudio(pkt *media.MediaPacket) error
	OnVideo(pkt *media.MediaPacket) error
}

// PublishRequest carries the negotiated parameters of a new publish (spec
// §4.1 initialize(request)).
type PublishRequest struct {
	StreamURL string
}

// StreamSource maintains exactly one logical stream identified by its URL:
// admits one publisher at a time, fans media to consumers and the origin
// hub (spec §4.1).
type StreamSource struct {
	mu sync.Mutex

	url   string
	state PublisherState
	dieAt time.Time

	consumers map[*Consumer]struct{}
	meta      *MetaCache
	gop       *GopCache
	hub       *OriginHub
	bridge    Bridge

	ReduceSequenceHeader bool
	CleanupDelay         time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewStreamSource constructs a StreamSource for the given URL. Per spec
// §4.1/§5, all fields are assigned here before the caller publishes this
// object into a lookup map — no yield points occur in this constructor.
func NewStreamSource(url string, hub *OriginHub, logger *slog.Logger) *StreamSource {
	return &StreamSource{
		url:                  url,
		state:                StateNotCreated,
		consumers:            make(map[*Consumer]struct{}),
		meta:                 &MetaCache{},
		gop:                  NewGopCache(true),
		hub:                  hub,
		ReduceSequenceHeader: true,
		CleanupDelay:         DefaultCleanupDelay,
		logger:               logger,
		now:                  time.Now,
	}
}

// Initialize performs idempotent setup; it never suspends and completes
// field assignment before any scheduler yield point (spec §4.1, §5).
func (s *StreamSource) Initialize(req PublishRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = req.StreamURL
	return nil
}

// OnPublish transitions not-created → created & delivering. Rejects a
// second concurrent publisher (spec §4.1, §7 SYSTEM_STREAM_BUSY).
func (s *StreamSource) OnPublish(videoCodec, audioCodec media.Codec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDelivering {
		return errs.New(errs.KindStreamBusy, "stream "+s.url+" already has a publisher")
	}
	s.state = StateDelivering
	s.hub.Reset()

	if s.bridge != nil {
		if err := s.bridge.Initialize(videoCodec, audioCodec); err != nil {
			return err
		}
	}
	if s.logger != nil {
		s.logger.Info("stream published", "url", s.url)
	}
	return nil
}

// OnUnpublish transitions delivering → not-created and arms the sweeper
// delay (spec §4.1).
func (s *StreamSource) OnUnpublish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateNotCreated
	s.meta.Clear()
	s.gop.Clear()
	s.dieAt = s.now().Add(s.CleanupDelay)
	if s.logger != nil {
		s.logger.Info("stream unpublished", "url", s.url)
	}
}

// SetBridge installs the protocol-bridge collaborator for this source.
func (s *StreamSource) SetBridge(b Bridge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bridge = b
}

// IsDelivering reports the publish state (spec §8 invariant 1).
func (s *StreamSource) IsDelivering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateDelivering
}

// OnAudio handles an inbound audio MediaPacket: sequence-header caching and
// duplicate suppression, gop caching, consumer fan-out, hub/bridge forward
// (spec §4.1 on_audio).
func (s *StreamSource) OnAudio(pkt *media.MediaPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onMediaLocked(pkt, false)
}

// OnVideo is OnAudio's video counterpart (spec §4.1 on_video).
func (s *StreamSource) OnVideo(pkt *media.MediaPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onMediaLocked(pkt, true)
}

func (s *StreamSource) onMediaLocked(pkt *media.MediaPacket, isVideo bool) error {
	suppressed := false

	if pkt.IsSequenceHeader {
		if isVideo {
			dup := s.meta.IsDuplicateVideoSH(pkt)
			s.meta.UpdateVideoSH(pkt.Copy())
			suppressed = dup && s.ReduceSequenceHeader
		} else {
			dup := s.meta.IsDuplicateAudioSH(pkt)
			s.meta.UpdateAudioSH(pkt.Copy())
			suppressed = dup && s.ReduceSequenceHeader
		}
	}

	s.gop.Cache(pkt)

	if !suppressed {
		for c := range s.consumers {
			c.Enqueue(pkt)
		}
	}

	var hubErr, bridgeErr error
	if s.hub != nil {
		if isVideo {
			hubErr = s.hub.OnVideo(pkt, nil)
		} else {
			hubErr = s.hub.OnAudio(pkt)
		}
	}

	if s.bridge != nil {
		if isVideo {
			bridgeErr = s.bridge.OnVideo(pkt)
		} else {
			bridgeErr = s.bridge.OnAudio(pkt)
		}
	}

	if hubErr != nil {
		return hubErr
	}
	return bridgeErr
}

// OnMetaData caches the metadata message and enqueues it to every consumer
// (spec §4.1 on_meta_data). The AMF payload is passed on as received: no
// keys are stripped, no server identity is added, and the message is not
// forwarded to the hub or the bridge.
func (s *StreamSource) OnMetaData(pkt *media.MediaPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta.UpdateMeta(pkt.Copy())
	for c := range s.consumers {
		c.Enqueue(pkt)
	}
}

// CreateConsumer allocates and registers a new consumer, resetting die-at
// (spec §4.1 create_consumer).
func (s *StreamSource) CreateConsumer() *Consumer {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := newConsumer()
	s.consumers[c] = struct{}{}
	s.dieAt = time.Time{}
	return c
}

// RemoveConsumer unregisters a consumer and arms the sweeper delay if no
// consumers and no publisher remain.
func (s *StreamSource) RemoveConsumer(c *Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.consumers, c)
	if len(s.consumers) == 0 && s.state == StateNotCreated {
		s.dieAt = s.now().Add(s.CleanupDelay)
	}
}

// ConsumerDumps atomically replays cached metadata + audio SH + video SH +
// optional gop to the new consumer (spec §4.1 consumer_dumps).
func (s *StreamSource) ConsumerDumps(c *Consumer, dumpMeta, dumpSH, dumpGop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dumpMeta && s.meta.Meta != nil {
		c.Enqueue(s.meta.Meta)
	}
	if dumpSH {
		if s.meta.AudioSH != nil {
			c.Enqueue(s.meta.AudioSH)
		}
		if s.meta.VideoSH != nil {
			c.Enqueue(s.meta.VideoSH)
		}
	}
	if dumpGop {
		for _, p := range s.gop.Dump() {
			c.Enqueue(p)
			p.Release()
		}
	}
}

// StreamIsDead reports whether the source has no publisher, no consumers,
// and the cleanup delay has elapsed (spec §4.1 stream_is_dead, §8 invariant 1).
func (s *StreamSource) StreamIsDead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDelivering || len(s.consumers) > 0 {
		return false
	}
	if s.dieAt.IsZero() {
		return false
	}
	return !s.now().Before(s.dieAt)
}

// URL returns the stream's identifying URL.
func (s *StreamSource) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

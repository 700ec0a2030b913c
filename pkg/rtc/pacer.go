package rtc

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/srs-core/mediacore/pkg/logger"
)

// pacerClockRate is the RTP clock rate used to convert a timestamp delta
// into a wall-clock delay. Video and audio send tracks use different clock
// rates (90kHz / 48kHz), so each Pacer is built for one.
type pacerClockRate uint32

const (
	VideoClockRateHz pacerClockRate = 90000
	AudioClockRateHz pacerClockRate = 48000

	// catchupThreshold/catchupSpeedMultiplier let the pacer drain a backlog
	// faster than real time rather than accumulate unbounded latency.
	catchupThreshold       = 5
	catchupSpeedMultiplier = 1.1

	// maxPacketDelay bounds how long a single packet can be held back,
	// protecting against runaway waits on a corrupt timestamp.
	maxPacketDelay = 200 * time.Millisecond

	// defaultMaxPacketRate is a hard ceiling on instantaneous send rate,
	// independent of the timestamp-derived delay: a safety net if a
	// corrupted or wrapped timestamp ever makes that delay collapse to
	// zero for a run of packets.
	defaultMaxPacketRate = 1000 // packets/sec
	defaultRateBurst     = 50
)

// PacedPacket is one send-track packet queued for paced transmission.
type PacedPacket struct {
	Packet    *RtpPacket
	Timestamp uint32
}

// Pacer smooths outgoing RTP transmission for a single send track: it
// restores the nominal spacing implied by RTP timestamps, absorbing bursts
// from the RTMP-side frame source, and speeds up (within a 1.1x bound) to
// drain a backlog rather than let latency grow unbounded (spec §4.9
// PlayStream "rebuild step that applies a per-track sequence/timestamp
// jitter").
type Pacer struct {
	logger    *logger.Logger
	clockRate pacerClockRate
	write     func(*RtpPacket) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	queue chan *PacedPacket

	limiter *rate.Limiter

	first      bool
	lastTS     uint32
	lastSentAt time.Time

	now func() time.Time
}

// NewPacer constructs a Pacer for one send track. write delivers a paced
// packet to the wire; clockRate is the track's RTP clock rate.
func NewPacer(ctx context.Context, log *logger.Logger, clockRate pacerClockRate, write func(*RtpPacket) error) *Pacer {
	ctx, cancel := context.WithCancel(ctx)
	return &Pacer{
		logger:    log.With("component", "pacer"),
		clockRate: clockRate,
		write:     write,
		ctx:       ctx,
		cancel:    cancel,
		queue:     make(chan *PacedPacket, 64),
		limiter:   rate.NewLimiter(rate.Limit(defaultMaxPacketRate), defaultRateBurst),
		first:     true,
		now:       time.Now,
	}
}

// SetMaxPacketRate overrides the hard send-rate ceiling (packets/sec,
// burst), useful for tracks with an unusually high nominal bitrate.
func (p *Pacer) SetMaxPacketRate(packetsPerSecond rate.Limit, burst int) {
	p.limiter.SetLimit(packetsPerSecond)
	p.limiter.SetBurst(burst)
}

// Start launches the pacer's send-loop goroutine.
func (p *Pacer) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop()
	}()
}

// Stop cancels the pacer and waits for its goroutine to exit.
func (p *Pacer) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Enqueue queues pkt for paced transmission, blocking (subject to ctx) if
// the internal queue is momentarily full rather than dropping the packet.
func (p *Pacer) Enqueue(pkt *PacedPacket) error {
	select {
	case p.queue <- pkt:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

func (p *Pacer) loop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case pkt := <-p.queue:
			if err := p.pace(pkt); err != nil {
				if p.ctx.Err() != nil {
					return
				}
				p.logger.Error("pacer failed to send packet", "timestamp", pkt.Timestamp, "error", err)
			}
		}
	}
}

func (p *Pacer) pace(pkt *PacedPacket) error {
	now := p.now()

	if p.first {
		p.first = false
		p.lastTS = pkt.Timestamp
		p.lastSentAt = now
		return p.write(pkt.Packet)
	}

	delay := p.calculateDelay(pkt.Timestamp, now)

	if queueDepth := len(p.queue); queueDepth >= catchupThreshold {
		delay = time.Duration(float64(delay) / catchupSpeedMultiplier)
	}
	if delay > maxPacketDelay {
		delay = maxPacketDelay
	}
	if delay < 0 {
		delay = 0
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}

	if err := p.limiter.Wait(p.ctx); err != nil {
		return err
	}

	if err := p.write(pkt.Packet); err != nil {
		return err
	}
	p.lastTS = pkt.Timestamp
	p.lastSentAt = p.now()
	return nil
}

// calculateDelay converts the RTP timestamp delta since the last sent
// packet into a wall-clock delay, handling uint32 wraparound.
func (p *Pacer) calculateDelay(currentTS uint32, now time.Time) time.Duration {
	var tsDelta uint32
	if currentTS >= p.lastTS {
		tsDelta = currentTS - p.lastTS
	} else {
		tsDelta = (0xFFFFFFFF - p.lastTS) + currentTS + 1
	}
	timestampDelay := time.Duration(tsDelta) * time.Second / time.Duration(p.clockRate)
	actualElapsed := now.Sub(p.lastSentAt)
	return timestampDelay - actualElapsed
}

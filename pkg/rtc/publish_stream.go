package rtc

import (
	"context"
	"sync"
	"time"

	"github.com/pion/rtcp"

	"github.com/srs-core/mediacore/pkg/circuitbreaker"
	"github.com/srs-core/mediacore/pkg/errs"
	"github.com/srs-core/mediacore/pkg/logger"
	"github.com/srs-core/mediacore/pkg/mpegts"
)

const (
	rtcpReportInterval = 100 * time.Millisecond
	twccReportInterval = 100 * time.Millisecond
)

// ReceiveTrack is one SSRC's receive-side bookkeeping: the NACK list
// driving retransmission requests for that track's incoming RTP stream.
type ReceiveTrack struct {
	Desc   *TrackDescription
	Nacks  *NackList
	Active bool
}

// ReceiverReportSource supplies the reception-quality numbers a
// PublishStream needs to build an RTCP RR for one track; implemented by
// whatever collects jitter/loss stats for that track's incoming stream.
type ReceiverReportSource interface {
	ReceptionReport(ssrc uint32) rtcp.ReceptionReport
}

// PublishStreamTransport sends an RTCP compound packet. The NTP timestamp
// in XR-RRTR blocks comes from the PublishStream's own clock, not from here.
type PublishStreamTransport interface {
	SendRTCP(pkts []rtcp.Packet) error
}

// PublishStream owns a publisher's per-SSRC receive tracks, the TWCC
// sequence number source, and the periodic RTCP RR/XR/TWCC timers (spec
// §4.9 PublishStream).
type PublishStream struct {
	logger     *logger.Logger
	transport  PublishStreamTransport
	reports    ReceiverReportSource
	breaker    *circuitbreaker.CircuitBreaker
	senderSSRC uint32

	mu            sync.Mutex
	tracks        map[uint32]*ReceiveTrack
	senderStarted bool
	twccEnabled   bool
	twcc          *TWCCRecorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// NewPublishStream constructs a PublishStream. transport delivers RTCP
// packets to the wire; reports supplies per-track reception-quality
// numbers; breaker gates the TWCC timer (spec §4.9 "NOT
// circuit_breaker.critical").
func NewPublishStream(ctx context.Context, log *logger.Logger, senderSSRC uint32, transport PublishStreamTransport, reports ReceiverReportSource, breaker *circuitbreaker.CircuitBreaker) *PublishStream {
	ctx, cancel := context.WithCancel(ctx)
	return &PublishStream{
		logger:     log.With("component", "publish_stream"),
		transport:  transport,
		reports:    reports,
		breaker:    breaker,
		senderSSRC: senderSSRC,
		tracks:     make(map[uint32]*ReceiveTrack),
		twcc:       NewTWCCRecorder(senderSSRC),
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

// AddTrack registers a receive track by its primary SSRC.
func (p *PublishStream) AddTrack(desc *TrackDescription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks[desc.SSRC] = &ReceiveTrack{Desc: desc, Nacks: NewNackList(), Active: true}
}

// SetSenderStarted marks whether the publisher's sender has started,
// gating the RTCP RR timer (spec §4.9 "if sender started").
func (p *PublishStream) SetSenderStarted(started bool) {
	p.mu.Lock()
	p.senderStarted = started
	p.mu.Unlock()
}

// SetTWCCEnabled toggles whether the TWCC timer is active for this stream.
func (p *PublishStream) SetTWCCEnabled(enabled bool) {
	p.mu.Lock()
	p.twccEnabled = enabled
	p.mu.Unlock()
}

// OnTWCC records seq's arrival time for mediaSSRC, failing on a duplicate
// sequence number within the current reporting window (spec §4.9).
func (p *PublishStream) OnTWCC(mediaSSRC uint32, seq uint16, arrivalTimeNs int64) error {
	if !p.twcc.OnTWCC(mediaSSRC, seq, arrivalTimeNs) {
		return errs.New(errs.KindRTCSTUN, "duplicate twcc sequence number")
	}
	return nil
}

// Start launches the RTCP RR and TWCC timer goroutines.
func (p *PublishStream) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.rtcpTimerLoop()
	}()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.twccTimerLoop()
	}()
}

// Stop cancels both timer goroutines and waits for them to exit.
func (p *PublishStream) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *PublishStream) rtcpTimerLoop() {
	ticker := time.NewTicker(rtcpReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.emitRTCPReports()
		}
	}
}

func (p *PublishStream) emitRTCPReports() {
	p.mu.Lock()
	started := p.senderStarted
	tracks := make([]*ReceiveTrack, 0, len(p.tracks))
	for _, t := range p.tracks {
		tracks = append(tracks, t)
	}
	p.mu.Unlock()

	if !started {
		return
	}

	for _, t := range tracks {
		var pkts []rtcp.Packet
		if p.reports != nil {
			pkts = append(pkts, BuildReceiverReport(p.senderSSRC, []rtcp.ReceptionReport{p.reports.ReceptionReport(t.Desc.SSRC)}))
		} else {
			pkts = append(pkts, BuildReceiverReport(p.senderSSRC, nil))
		}
		pkts = append(pkts, BuildExtendedReportRRTR(p.senderSSRC, mpegts.NtpFromTimeMs(uint64(p.now().UnixMilli()))))
		if err := p.transport.SendRTCP(pkts); err != nil {
			p.logger.Warn("failed to send rtcp rr/xr", "ssrc", t.Desc.SSRC, "error", err)
		}
	}
}

func (p *PublishStream) twccTimerLoop() {
	ticker := time.NewTicker(twccReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.emitTWCC()
		}
	}
}

func (p *PublishStream) emitTWCC() {
	p.mu.Lock()
	gated := p.senderStarted && p.twccEnabled && !(p.breaker != nil && p.breaker.Critical())
	p.mu.Unlock()
	if !gated {
		return
	}

	pkts := p.twcc.BuildFeedback()
	if len(pkts) == 0 {
		return
	}
	if err := p.transport.SendRTCP(pkts); err != nil {
		p.logger.Warn("failed to send twcc feedback", "error", err)
	}
}

package rtc

import (
	"context"
	"sync"

	"github.com/srs-core/mediacore/pkg/logger"
)

// PLIHandler issues the actual keyframe request to the RTC publisher for one
// (ssrc, subscriber-cid) pair.
type PLIHandler interface {
	DoRequestKeyframe(ssrc uint32, cid string) error
}

type pliRequest struct {
	ssrc uint32
	cid  string
}

// PLIWorker is the single-producer/single-consumer coalescing queue of spec
// §4.8: player NACK timeouts and the bridge's PLI timer may both call
// RequestKeyframe for the same (ssrc, cid) within milliseconds, and only one
// keyframe request should reach the publisher.
type PLIWorker struct {
	logger  *logger.Logger
	handler PLIHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	signal  chan struct{}

	mu      sync.Mutex
	pending map[pliRequest]struct{}
	queue   []pliRequest
}

// NewPLIWorker constructs a worker that dispatches coalesced keyframe
// requests to handler until Stop is called or ctx is cancelled.
func NewPLIWorker(ctx context.Context, log *logger.Logger, handler PLIHandler) *PLIWorker {
	ctx, cancel := context.WithCancel(ctx)
	return &PLIWorker{
		logger:  log.With("component", "pli_worker"),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		signal:  make(chan struct{}, 1),
		pending: make(map[pliRequest]struct{}),
	}
}

// Start launches the worker's single consumer goroutine.
func (w *PLIWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

// Stop cancels the worker and waits for its goroutine to exit.
func (w *PLIWorker) Stop() {
	w.cancel()
	w.wg.Wait()
}

// RequestKeyframe enqueues a keyframe request for (ssrc, cid), deduping
// against any request for the same pair still waiting to be dispatched.
func (w *PLIWorker) RequestKeyframe(ssrc uint32, cid string) {
	req := pliRequest{ssrc: ssrc, cid: cid}

	w.mu.Lock()
	if _, exists := w.pending[req]; exists {
		w.mu.Unlock()
		return
	}
	w.pending[req] = struct{}{}
	w.queue = append(w.queue, req)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *PLIWorker) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.signal:
			w.drain()
		}
	}
}

func (w *PLIWorker) drain() {
	for {
		req, ok := w.dequeue()
		if !ok {
			return
		}
		if err := w.handler.DoRequestKeyframe(req.ssrc, req.cid); err != nil {
			w.logger.Warn("keyframe request failed",
				"ssrc", req.ssrc, "cid", req.cid, "error", err)
		}
		select {
		case <-w.ctx.Done():
			return
		default:
		}
	}
}

func (w *PLIWorker) dequeue() (pliRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return pliRequest{}, false
	}
	req := w.queue[0]
	w.queue = w.queue[1:]
	delete(w.pending, req)
	return req, true
}

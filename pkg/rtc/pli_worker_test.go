package rtc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srs-core/mediacore/pkg/logger"
)

type recordingPLIHandler struct {
	mu    sync.Mutex
	calls []pliRequest
	done  chan struct{}
	fail  map[pliRequest]bool
}

func newRecordingPLIHandler(expect int) *recordingPLIHandler {
	return &recordingPLIHandler{done: make(chan struct{}, expect)}
}

func (h *recordingPLIHandler) DoRequestKeyframe(ssrc uint32, cid string) error {
	req := pliRequest{ssrc: ssrc, cid: cid}
	h.mu.Lock()
	h.calls = append(h.calls, req)
	fail := h.fail[req]
	h.mu.Unlock()
	h.done <- struct{}{}
	if fail {
		return errTestHandlerFailure
	}
	return nil
}

func (h *recordingPLIHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.NewConfig())
	require.NoError(t, err)
	return log
}

func TestPLIWorkerCoalescesDuplicateRequests(t *testing.T) {
	handler := newRecordingPLIHandler(1)
	w := NewPLIWorker(context.Background(), testLogger(t), handler)

	// Both requests arrive before the worker starts, so they're guaranteed
	// to coalesce into a single dispatched call.
	w.RequestKeyframe(42, "subscriber-a")
	w.RequestKeyframe(42, "subscriber-a")

	w.Start()
	defer w.Stop()

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("keyframe request was not dispatched")
	}

	// Give the worker a moment to notice there's nothing else queued.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, handler.callCount())
}

func TestPLIWorkerDispatchesDistinctPairs(t *testing.T) {
	handler := newRecordingPLIHandler(2)
	w := NewPLIWorker(context.Background(), testLogger(t), handler)
	w.Start()
	defer w.Stop()

	w.RequestKeyframe(1, "a")
	w.RequestKeyframe(2, "b")

	for i := 0; i < 2; i++ {
		select {
		case <-handler.done:
		case <-time.After(2 * time.Second):
			t.Fatal("missing dispatched keyframe request")
		}
	}
	require.Equal(t, 2, handler.callCount())
}

func TestPLIWorkerSwallowsHandlerErrorsAndKeepsRunning(t *testing.T) {
	handler := newRecordingPLIHandler(2)
	handler.fail = map[pliRequest]bool{{ssrc: 1, cid: "a"}: true}
	w := NewPLIWorker(context.Background(), testLogger(t), handler)
	w.Start()
	defer w.Stop()

	w.RequestKeyframe(1, "a")
	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("first request not dispatched")
	}

	w.RequestKeyframe(2, "b")
	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker stopped processing after handler error")
	}
	require.Equal(t, 2, handler.callCount())
}

func TestPLIWorkerRequeueAfterDispatch(t *testing.T) {
	handler := newRecordingPLIHandler(2)
	w := NewPLIWorker(context.Background(), testLogger(t), handler)
	w.Start()
	defer w.Stop()

	w.RequestKeyframe(9, "x")
	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("first request not dispatched")
	}

	// Once drained, the same pair is no longer "pending" and can be
	// requested again.
	w.RequestKeyframe(9, "x")
	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("second request for the same pair was not dispatched")
	}
	require.Equal(t, 2, handler.callCount())
}

var errTestHandlerFailure = &testHandlerError{}

type testHandlerError struct{}

func (*testHandlerError) Error() string { return "simulated keyframe request failure" }

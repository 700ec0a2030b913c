package rtc

import (
	"sync"

	"github.com/pion/interceptor/pkg/twcc"
	"github.com/pion/rtcp"
)

// TWCCRecorder accumulates per-packet arrival times for one PublishStream
// and builds Transport-CC feedback packets (spec §4.9 "TWCC timer ... Emits
// a Transport-CC feedback packet", "on_twcc(seq): records the arrival time
// for the given packet sequence; duplicate sequence numbers fail").
type TWCCRecorder struct {
	mu       sync.Mutex
	recorder *twcc.Recorder
	seen     map[uint16]struct{}
}

// NewTWCCRecorder constructs a recorder that reports feedback as senderSSRC.
func NewTWCCRecorder(senderSSRC uint32) *TWCCRecorder {
	return &TWCCRecorder{
		recorder: twcc.NewRecorder(senderSSRC),
		seen:     make(map[uint16]struct{}),
	}
}

// OnTWCC records the arrival time (nanoseconds since epoch) for seq on the
// given media SSRC. A duplicate sequence number within the current feedback
// window fails, per spec §4.9.
func (t *TWCCRecorder) OnTWCC(mediaSSRC uint32, seq uint16, arrivalTimeNs int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.seen[seq]; dup {
		return false
	}
	t.seen[seq] = struct{}{}
	t.recorder.Record(mediaSSRC, seq, arrivalTimeNs)
	return true
}

// BuildFeedback builds the pending Transport-CC feedback packets and clears
// the dedup window, ready for the next 100ms reporting interval.
func (t *TWCCRecorder) BuildFeedback() []rtcp.Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	pkts := t.recorder.BuildFeedbackPacket()
	t.seen = make(map[uint16]struct{})
	return pkts
}

package rtc

import "time"

// DefaultMaxNackRetries bounds how many times a missing sequence number is
// re-requested before being given up on (spec §3 NackList.check_queue_size).
const DefaultMaxNackRetries = 10

// DefaultNackListMaxSize caps the number of pending NACK entries.
const DefaultNackListMaxSize = 1000

// DefaultRingBufferSize is the receive-side ring buffer capacity recording
// recently received sequence numbers.
const DefaultRingBufferSize = 256

type nackEntry struct {
	firstNackTime time.Time
	count         int
}

// NackList tracks missing sequence numbers awaiting retransmission and a
// ring of recently received sequence numbers, feeding RFC 4585 RTPFB/NACK
// generation (spec §3 NackList).
type NackList struct {
	MaxSize    int
	MaxRetries int

	pending map[uint16]*nackEntry
	ring    []uint16
	ringPos int

	now func() time.Time
}

func NewNackList() *NackList {
	return &NackList{
		MaxSize:    DefaultNackListMaxSize,
		MaxRetries: DefaultMaxNackRetries,
		pending:    make(map[uint16]*nackEntry),
		ring:       make([]uint16, DefaultRingBufferSize),
		now:        time.Now,
	}
}

// MarkReceived records seq as received, removing any pending NACK entry.
func (n *NackList) MarkReceived(seq uint16) {
	delete(n.pending, seq)
	n.ring[n.ringPos%len(n.ring)] = seq
	n.ringPos++
}

// MarkLost adds seq to the pending set if not already tracked.
func (n *NackList) MarkLost(seq uint16) {
	if _, ok := n.pending[seq]; ok {
		return
	}
	n.pending[seq] = &nackEntry{firstNackTime: n.now(), count: 0}
	n.checkQueueSize()
}

// checkQueueSize discards entries that exceeded max retries, then enforces
// MaxSize by dropping the oldest remaining entries (spec §3
// NackList.check_queue_size).
func (n *NackList) checkQueueSize() {
	for seq, e := range n.pending {
		if e.count > n.MaxRetries {
			delete(n.pending, seq)
		}
	}
	if len(n.pending) <= n.MaxSize {
		return
	}
	var oldestSeq uint16
	var oldestTime time.Time
	first := true
	for len(n.pending) > n.MaxSize {
		for seq, e := range n.pending {
			if first || e.firstNackTime.Before(oldestTime) {
				oldestSeq, oldestTime, first = seq, e.firstNackTime, false
			}
		}
		delete(n.pending, oldestSeq)
		first = true
	}
}

// NackEntry describes one pending retransmission request for feedback encoding.
type NackEntry struct {
	Seq   uint16
	Count int
}

// PendingForFeedback returns pending sequence numbers and increments their
// retry count, ready to be packed into an RTCP NACK PID/BLP entry.
func (n *NackList) PendingForFeedback() []NackEntry {
	out := make([]NackEntry, 0, len(n.pending))
	for seq, e := range n.pending {
		e.count++
		out = append(out, NackEntry{Seq: seq, Count: e.count})
	}
	return out
}

// Len reports the number of pending (not-yet-recovered) sequence numbers.
func (n *NackList) Len() int {
	return len(n.pending)
}

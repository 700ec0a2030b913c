package source

import "github.com/srs-core/mediacore/pkg/media"

// DefaultMaxQueueDuration is the default wall-clock bound for a consumer's
// per-stream queue (spec §3 MessageQueue, §5 Backpressure).
const DefaultMaxQueueDuration = 10000 // ms

// MessageQueue is a per-consumer bounded queue. Bounding is by wall-clock
// duration between the first and last cached timestamp, not by item count
// (spec §3 MessageQueue).
type MessageQueue struct {
	MaxDuration int64 // ms; DefaultMaxQueueDuration if zero

	packets []*media.MediaPacket
}

func NewMessageQueue() *MessageQueue {
	return &MessageQueue{MaxDuration: DefaultMaxQueueDuration}
}

func (q *MessageQueue) maxDuration() int64 {
	if q.MaxDuration <= 0 {
		return DefaultMaxQueueDuration
	}
	return q.MaxDuration
}

// Duration is (last_timestamp - first_timestamp) across cached packets.
func (q *MessageQueue) Duration() int64 {
	if len(q.packets) == 0 {
		return 0
	}
	return q.packets[len(q.packets)-1].Timestamp - q.packets[0].Timestamp
}

// Enqueue appends pkt and, if the queue duration now exceeds MaxDuration,
// shrinks it (spec §3 MessageQueue.enqueue / shrink; §8 invariant 4).
func (q *MessageQueue) Enqueue(pkt *media.MediaPacket) {
	q.packets = append(q.packets, pkt.Copy())
	if q.Duration() > q.maxDuration() {
		q.shrink()
	}
}

// shrink retains only sequence headers and the latest audio/video frame
// pointers for stream continuity, dropping the middle (spec §3).
func (q *MessageQueue) shrink() {
	var kept []*media.MediaPacket
	var lastAudio, lastVideo *media.MediaPacket

	for _, p := range q.packets {
		if p.IsSequenceHeader {
			kept = append(kept, p)
			continue
		}
		if p.IsAudio() {
			lastAudio = p
		} else if p.IsVideo() {
			lastVideo = p
		} else {
			p.Release()
		}
	}
	if lastAudio != nil {
		kept = append(kept, lastAudio)
	}
	if lastVideo != nil {
		kept = append(kept, lastVideo)
	}

	dropped := len(q.packets) - len(kept)
	_ = dropped
	q.packets = kept
}

// Len reports the number of packets currently cached.
func (q *MessageQueue) Len() int {
	return len(q.packets)
}

// DumpPackets moves up to maxCount packets out of the queue in FIFO order.
// Fewer stored than maxCount fully empties the queue; more erases only the
// returned prefix and preserves the rest in order (spec §8 boundary
// behavior).
func (q *MessageQueue) DumpPackets(maxCount int) []*media.MediaPacket {
	if maxCount <= 0 || maxCount >= len(q.packets) {
		out := q.packets
		q.packets = nil
		return out
	}
	out := q.packets[:maxCount]
	q.packets = append([]*media.MediaPacket(nil), q.packets[maxCount:]...)
	return out
}

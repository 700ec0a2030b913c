package source

import (
	"sync"
	"time"

	"github.com/srs-core/mediacore/pkg/media"
)

// Consumer is one subscriber's bounded view of a StreamSource (spec §4.1
// create_consumer / consumer_dumps).
type Consumer struct {
	mu    sync.Mutex
	queue *MessageQueue
	dieAt time.Time
}

func newConsumer() *Consumer {
	return &Consumer{queue: NewMessageQueue()}
}

// Enqueue pushes pkt onto the consumer's bounded queue.
func (c *Consumer) Enqueue(pkt *media.MediaPacket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.Enqueue(pkt)
}

// Dump drains up to maxCount queued packets in FIFO order.
func (c *Consumer) Dump(maxCount int) []*media.MediaPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.DumpPackets(maxCount)
}

// Len reports the number of packets currently queued.
func (c *Consumer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

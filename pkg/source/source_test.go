package source

import (
	"testing"
	"time"

	"github.com/srs-core/mediacore/pkg/media"
	"github.com/stretchr/testify/require"
)

func aacSH(ts int64, payload []byte) *media.MediaPacket {
	return media.New(ts, media.MessageTypeAudio, media.CodecAAC, payload, true, false)
}

func aacFrame(ts int64) *media.MediaPacket {
	return media.New(ts, media.MessageTypeAudio, media.CodecAAC, []byte("raw"), false, false)
}

// TestSequenceHeaderDuplicateSuppression is spec §8 scenario 2.
func TestSequenceHeaderDuplicateSuppression(t *testing.T) {
	src := NewStreamSource("rtmp://x/y", NewOriginHub(nil), nil)
	require.NoError(t, src.OnPublish(media.CodecUnknown, media.CodecAAC))
	consumer := src.CreateConsumer()

	sh1 := []byte{0xAF, 0x00, 0x12, 0x10}
	require.NoError(t, src.OnAudio(aacSH(1000, sh1)))
	require.Equal(t, 1, consumer.Len())

	require.NoError(t, src.OnAudio(aacSH(2000, append([]byte(nil), sh1...))))
	require.Equal(t, 1, consumer.Len(), "duplicate SH must not be enqueued")

	require.NoError(t, src.OnAudio(aacFrame(3000)))
	require.Equal(t, 2, consumer.Len())

	dumped := consumer.Dump(0)
	require.Len(t, dumped, 2)
	require.Equal(t, int64(1000), dumped[0].Timestamp)
	require.Equal(t, int64(3000), dumped[1].Timestamp)
}

// TestGopCachePureAudioOverflow is spec §8 scenario 3.
func TestGopCachePureAudioOverflow(t *testing.T) {
	g := NewGopCache(true)

	key := media.New(0, media.MessageTypeVideo, media.CodecAVC, []byte("key"), false, true)
	inter1 := media.New(40, media.MessageTypeVideo, media.CodecAVC, []byte("i1"), false, false)
	inter2 := media.New(80, media.MessageTypeVideo, media.CodecAVC, []byte("i2"), false, false)
	a1 := media.New(20, media.MessageTypeAudio, media.CodecAAC, []byte("a1"), false, false)
	a2 := media.New(60, media.MessageTypeAudio, media.CodecAAC, []byte("a2"), false, false)

	g.Cache(key)
	g.Cache(a1)
	g.Cache(inter1)
	g.Cache(a2)
	g.Cache(inter2)

	require.False(t, g.Empty())
	require.False(t, g.PureAudio())

	ts := int64(120)
	for i := 0; i < 116; i++ {
		g.Cache(media.New(ts, media.MessageTypeAudio, media.CodecAAC, []byte("a"), false, false))
		ts += 20
		if i < 115 {
			require.False(t, g.Empty(), "iteration %d", i)
		}
	}

	require.True(t, g.Empty())
	require.True(t, g.PureAudio())
}

func TestMessageQueueDumpPackets(t *testing.T) {
	q := NewMessageQueue()
	for i := int64(0); i < 3; i++ {
		q.Enqueue(media.New(i, media.MessageTypeAudio, media.CodecAAC, []byte{byte(i)}, false, false))
	}

	dumped := q.DumpPackets(10)
	require.Len(t, dumped, 3)
	require.Equal(t, 0, q.Len())

	q2 := NewMessageQueue()
	for i := int64(0); i < 5; i++ {
		q2.Enqueue(media.New(i, media.MessageTypeAudio, media.CodecAAC, []byte{byte(i)}, false, false))
	}
	dumped2 := q2.DumpPackets(2)
	require.Len(t, dumped2, 2)
	require.Equal(t, 3, q2.Len())
	require.Equal(t, int64(2), q2.packets[0].Timestamp)
}

func TestStreamIsDeadAfterCleanupDelay(t *testing.T) {
	src := NewStreamSource("rtmp://x/y", NewOriginHub(nil), nil)
	cur := time.Now()
	src.now = func() time.Time { return cur }

	require.NoError(t, src.OnPublish(media.CodecAVC, media.CodecAAC))
	require.True(t, src.IsDelivering())
	require.False(t, src.StreamIsDead())

	src.OnUnpublish()
	require.False(t, src.IsDelivering())
	require.False(t, src.StreamIsDead(), "not dead until cleanup delay elapses")

	cur = cur.Add(DefaultCleanupDelay + time.Millisecond)
	require.True(t, src.StreamIsDead())
}

func TestSourceManagerSweep(t *testing.T) {
	cur := time.Now()
	m := NewSourceManager(func(url string) *StreamSource {
		s := NewStreamSource(url, NewOriginHub(nil), nil)
		s.now = func() time.Time { return cur }
		return s
	}, nil)

	s := m.FetchOrCreate("rtmp://x/live")
	require.NoError(t, s.OnPublish(media.CodecAVC, media.CodecAAC))
	s.OnUnpublish()

	require.Empty(t, m.Sweep())

	cur = cur.Add(DefaultCleanupDelay + time.Millisecond)
	removed := m.Sweep()
	require.Equal(t, []string{"rtmp://x/live"}, removed)

	_, ok := m.Fetch("rtmp://x/live")
	require.False(t, ok)
}

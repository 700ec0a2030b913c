package rtc

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	alive      atomic.Bool
	disposing  atomic.Bool
	switched   atomic.Int32
	lastRTP    []byte
	lastRTCP   []byte
	lastSTUN   *stun.Message
	lastDTLS   []byte
}

func (f *fakeSession) IsAlive() bool     { return f.alive.Load() }
func (f *fakeSession) IsDisposing() bool { return f.disposing.Load() }
func (f *fakeSession) SwitchToContext()  { f.switched.Add(1) }
func (f *fakeSession) OnRTP(data []byte) error {
	f.lastRTP = data
	return nil
}
func (f *fakeSession) OnRTCP(data []byte) error {
	f.lastRTCP = data
	return nil
}
func (f *fakeSession) OnSTUN(msg *stun.Message) error {
	f.lastSTUN = msg
	return nil
}
func (f *fakeSession) OnDTLS(data []byte) error {
	f.lastDTLS = data
	return nil
}

func TestFastIDPacksIPv4AndPort(t *testing.T) {
	a := FastID(net.ParseIP("192.168.1.10"), 5000)
	b := FastID(net.ParseIP("192.168.1.10"), 5001)
	c := FastID(net.ParseIP("192.168.1.11"), 5000)
	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
}

func TestFastIDHandlesIPv6(t *testing.T) {
	id := FastID(net.ParseIP("::1"), 443)
	require.NotZero(t, id)
}

func TestSessionManagerAddFindRemove(t *testing.T) {
	m := NewSessionManager(context.Background(), testLogger(t))
	s := &fakeSession{}
	fid := FastID(net.ParseIP("10.0.0.1"), 4000)
	m.Add("user1:user2", fid, s)

	got, ok := m.FindByUsername("user1:user2")
	require.True(t, ok)
	require.Same(t, s, got)

	got2, ok := m.FindByFastID(fid)
	require.True(t, ok)
	require.Same(t, s, got2)

	require.Equal(t, 1, m.Count())

	m.Remove(s)
	_, ok = m.FindByUsername("user1:user2")
	require.False(t, ok)
	_, ok = m.FindByFastID(fid)
	require.False(t, ok)
	require.Equal(t, 0, m.Count())
}

func TestSessionManagerSweepRemovesDeadNonDisposingSessions(t *testing.T) {
	m := NewSessionManager(context.Background(), testLogger(t))

	dead := &fakeSession{}
	dead.alive.Store(false)
	dead.disposing.Store(false)

	disposing := &fakeSession{}
	disposing.alive.Store(false)
	disposing.disposing.Store(true)

	alive := &fakeSession{}
	alive.alive.Store(true)

	m.Add("dead", FastID(net.ParseIP("10.0.0.2"), 1), dead)
	m.Add("disposing", FastID(net.ParseIP("10.0.0.3"), 2), disposing)
	m.Add("alive", FastID(net.ParseIP("10.0.0.4"), 3), alive)

	m.sweep()

	require.EqualValues(t, 1, dead.switched.Load(), "dead non-disposing session must switch context")
	_, ok := m.FindByUsername("dead")
	require.False(t, ok, "dead non-disposing session must be removed")

	require.EqualValues(t, 0, disposing.switched.Load(), "disposing session must be left alone")
	_, ok = m.FindByUsername("disposing")
	require.True(t, ok)

	require.EqualValues(t, 0, alive.switched.Load(), "alive session must be left alone")
	_, ok = m.FindByUsername("alive")
	require.True(t, ok)
}

func TestSessionManagerStartStopRunsSweepLoop(t *testing.T) {
	m := NewSessionManager(context.Background(), testLogger(t))
	dead := &fakeSession{}
	dead.alive.Store(false)
	m.Add("dead", FastID(net.ParseIP("10.0.0.5"), 9), dead)

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		_, ok := m.FindByUsername("dead")
		return !ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestClassifyDatagramSTUN(t *testing.T) {
	require.Equal(t, DatagramSTUN, ClassifyDatagram([]byte{0x00, 0x01}))
	require.Equal(t, DatagramSTUN, ClassifyDatagram([]byte{0x01, 0x01}))
}

func TestClassifyDatagramRTCP(t *testing.T) {
	require.Equal(t, DatagramRTCP, ClassifyDatagram([]byte{0x80, 200}))
	require.Equal(t, DatagramRTCP, ClassifyDatagram([]byte{0x81, 205}))
}

func TestClassifyDatagramRTP(t *testing.T) {
	require.Equal(t, DatagramRTP, ClassifyDatagram([]byte{0x80, 111}))
}

func TestClassifyDatagramDTLS(t *testing.T) {
	require.Equal(t, DatagramDTLS, ClassifyDatagram([]byte{0x16, 0xfe}))
}

func TestClassifyDatagramEmpty(t *testing.T) {
	require.Equal(t, DatagramUnknown, ClassifyDatagram(nil))
}

func TestDispatchDatagramRoutesRTP(t *testing.T) {
	s := &fakeSession{}
	buf := []byte{0x80, 111, 0, 0}
	require.NoError(t, DispatchDatagram(s, buf))
	require.Equal(t, buf, s.lastRTP)
}

func TestDispatchDatagramRoutesRTCP(t *testing.T) {
	s := &fakeSession{}
	buf := []byte{0x80, 200, 0, 0}
	require.NoError(t, DispatchDatagram(s, buf))
	require.Equal(t, buf, s.lastRTCP)
}

func TestDispatchDatagramRoutesDTLS(t *testing.T) {
	s := &fakeSession{}
	buf := []byte{0x16, 0xfe, 0xff}
	require.NoError(t, DispatchDatagram(s, buf))
	require.Equal(t, buf, s.lastDTLS)
}

func TestDispatchDatagramInvalidSTUNFails(t *testing.T) {
	s := &fakeSession{}
	require.Error(t, DispatchDatagram(s, []byte{0x00, 0x01, 0xff}))
}

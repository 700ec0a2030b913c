package rtc

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
)

// SSRCGenerator issues monotonically increasing SSRCs for the lifetime of
// one process. The original SrsRtcSSRCGenerator seeds from getpid()-derived
// arithmetic, which the spec §9 Open Question flags as not
// cryptographically sound; this reproduces the "monotone per process"
// contract while seeding from a CSPRNG instead.
type SSRCGenerator struct {
	next atomic.Uint32
}

// NewSSRCGenerator seeds the generator from crypto/rand.
func NewSSRCGenerator() *SSRCGenerator {
	var seed [4]byte
	_, _ = rand.Read(seed[:])
	g := &SSRCGenerator{}
	g.next.Store(binary.BigEndian.Uint32(seed[:]) | 1) // avoid 0
	return g
}

// Generate returns the next SSRC in this process's monotone sequence.
func (g *SSRCGenerator) Generate() uint32 {
	return g.next.Add(1)
}

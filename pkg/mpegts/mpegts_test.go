package mpegts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC32MPEG2KnownVector(t *testing.T) {
	require.Equal(t, uint32(0x0376E6E7), CRC32MPEG2([]byte("123456789")))
}

func TestNtpRoundTrip(t *testing.T) {
	for _, ms := range []uint64{0, 1, 999, 1000, 1001, 90000, 1<<32 - 1} {
		got := NtpToTimeMs(NtpFromTimeMs(ms))
		require.Equal(t, ms, got, "ms=%d", ms)
	}
}

func TestTSRoundTripAAC(t *testing.T) {
	ctx := NewTsContext()

	// spec §8 scenario 1 describes a single-TS-packet PES; a raw AAC frame
	// that size (well under the ~170-byte payload budget once the PES and
	// adaptation-field headers are accounted for) keeps the scenario's
	// "two packets then one PES packet" shape exact rather than spanning
	// several TS packets, which is what a 1024-byte raw frame would do.
	adts := EncodeADTS(1, ADTSSampleRateIndexOrPanic(44100), 2, make([]byte, 100))
	frame := &Frame{Dts: 90000, Pts: 90000, Raw: adts}

	out, err := ctx.Encode(CodecSet{Video: CodecReserved, Audio: CodecAAC}, frame, false)
	require.NoError(t, err)
	require.Equal(t, 0, len(out)%PacketSize)

	numPackets := len(out) / PacketSize
	require.Equal(t, 3, numPackets, "PAT + PMT + one PES packet")

	decoder := NewTsContext()

	patPkt := out[0:PacketSize]
	require.Equal(t, byte(0x47), patPkt[0])
	msg, err := decoder.Decode(patPkt)
	require.NoError(t, err)
	require.Nil(t, msg)
	require.NotNil(t, decoder.pat)
	require.Equal(t, uint16(PidPMT), decoder.pat.ProgramMapPID)

	pmtPkt := out[PacketSize : 2*PacketSize]
	require.Equal(t, byte(0x47), pmtPkt[0])
	msg, err = decoder.Decode(pmtPkt)
	require.NoError(t, err)
	require.Nil(t, msg)
	require.NotNil(t, decoder.pmt)
	require.Len(t, decoder.pmt.Streams, 1)
	require.Equal(t, StreamTypeAAC, decoder.pmt.Streams[0].StreamType)
	require.Equal(t, uint16(PidAudio), decoder.pmt.Streams[0].PID)

	pesPkt := out[2*PacketSize : 3*PacketSize]
	require.Equal(t, byte(0x47), pesPkt[0])
	msg, err = decoder.Decode(pesPkt)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, uint64(90000), msg.Dts)
	require.Equal(t, uint64(90000), msg.Pts)
	require.Equal(t, uint8(StreamIDAudio), msg.StreamID)
	require.Equal(t, byte(0xFF), msg.Payload[0])
	require.Equal(t, byte(0xF9), msg.Payload[1])
}

func ADTSSampleRateIndexOrPanic(hz int) uint8 {
	idx := ADTSSampleRateIndex(hz)
	if idx < 0 {
		panic("unsupported sample rate")
	}
	return uint8(idx)
}

func TestPATPIDMatchesScenario(t *testing.T) {
	pat, err := DecodePAT(EncodePAT())
	require.NoError(t, err)
	require.Equal(t, uint16(PidPMT), pat.ProgramMapPID)
}

func TestPMTAudioOnlyPCRIsAudioPID(t *testing.T) {
	section := EncodePMT([]PMTStream{{StreamType: StreamTypeAAC, PID: PidAudio}})
	pmt, err := DecodePMT(section)
	require.NoError(t, err)
	require.Equal(t, uint16(PidAudio), pmt.PCRPID)
}

func TestPMTWithVideoPCRIsVideoPID(t *testing.T) {
	section := EncodePMT([]PMTStream{
		{StreamType: StreamTypeAAC, PID: PidAudio},
		{StreamType: StreamTypeAVC, PID: PidVideo},
	})
	pmt, err := DecodePMT(section)
	require.NoError(t, err)
	require.Equal(t, uint16(PidVideo), pmt.PCRPID)
}

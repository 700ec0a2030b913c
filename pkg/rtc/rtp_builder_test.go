package rtc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testStreamDescription() *StreamDescription {
	audioSSRC := uint32(1001)
	videoSSRC := uint32(2002)
	return &StreamDescription{
		Audio: &TrackDescription{
			Type: "audio", SSRC: audioSSRC,
			Primary: Payload{PayloadType: 111, CodecName: "opus", ClockRate: 48000},
		},
		Video: []*TrackDescription{{
			Type: "video", SSRC: videoSSRC,
			Primary: Payload{PayloadType: 106, CodecName: "H264", ClockRate: 90000},
		}},
	}
}

type fakeTranscoder struct {
	frames [][]byte
	gotIn  []byte
}

func (f *fakeTranscoder) Transcode(adts []byte) ([][]byte, error) {
	f.gotIn = adts
	return f.frames, nil
}

func TestRTPBuilderBuildAudioWrapsADTSAndEmitsOneRTPPerOpusFrame(t *testing.T) {
	tc := &fakeTranscoder{frames: [][]byte{{0x01, 0x02}, {0x03, 0x04}}}
	b := NewRTPBuilder(testStreamDescription(), NALUFilter{}, tc)

	pkts, err := b.BuildAudio(1000, []byte{0xAA, 0xBB}, 48000, 2, 1)
	require.NoError(t, err)
	require.Len(t, pkts, 2)

	require.Equal(t, 0xFF, int(tc.gotIn[0]))
	require.Equal(t, uint16(0), pkts[0].SequenceNumber())
	require.Equal(t, uint16(1), pkts[1].SequenceNumber())
	for _, p := range pkts {
		require.True(t, p.Header.Marker)
		require.Equal(t, uint32(48000), p.Header.Timestamp)
		require.Equal(t, uint32(1001), p.Header.SSRC)
		require.Equal(t, PayloadOpus, p.Tag)
	}
}

func TestRTPBuilderBuildAudioNoTrackErrors(t *testing.T) {
	desc := &StreamDescription{}
	b := NewRTPBuilder(desc, NALUFilter{}, &fakeTranscoder{})
	_, err := b.BuildAudio(0, []byte{0x00}, 48000, 1, 1)
	require.Error(t, err)
}

func mkNALU(naluType byte, size int) []byte {
	n := make([]byte, size)
	n[0] = naluType
	return n
}

func TestRTPBuilderSingleNALUUnderThreshold(t *testing.T) {
	b := NewRTPBuilder(testStreamDescription(), NALUFilter{}, nil)
	sample := mkNALU(naluH264TypeP, 100)

	pkts, err := b.BuildVideo(500, [][]byte{sample}, false)
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	require.Equal(t, PayloadRaw, pkts[0].Tag)
	require.True(t, pkts[0].Header.Marker)
	require.Equal(t, uint32(45000), pkts[0].Header.Timestamp) // dts*90
}

func TestRTPBuilderFragmentsOverThresholdIntoFUA(t *testing.T) {
	b := NewRTPBuilder(testStreamDescription(), NALUFilter{}, nil)
	sample := mkNALU(naluH264TypeIDR, MaxRTPPayloadSize+500)

	pkts, err := b.BuildVideo(0, [][]byte{sample}, false)
	require.NoError(t, err)
	require.True(t, len(pkts) > 1)

	for i, p := range pkts {
		require.Equal(t, PayloadFUA, p.Tag)
		fuHeader := p.Payload[1]
		start := fuHeader&0x80 != 0
		end := fuHeader&0x40 != 0
		if i == 0 {
			require.True(t, start)
		} else {
			require.False(t, start)
		}
		if i == len(pkts)-1 {
			require.True(t, end)
			require.True(t, p.Header.Marker)
		} else {
			require.False(t, end)
		}
	}
}

func TestRTPBuilderEmitsParameterSetPacketAheadOfKeyframe(t *testing.T) {
	b := NewRTPBuilder(testStreamDescription(), NALUFilter{}, nil)
	b.SetDecoderConfig(nil, []byte{0x67, 0xAA}, []byte{0x68, 0xBB}, false)

	idr := mkNALU(naluH264TypeIDR, 50)
	pkts, err := b.BuildVideo(0, [][]byte{idr}, true)
	require.NoError(t, err)
	require.Len(t, pkts, 2)

	require.Equal(t, PayloadSTAPA, pkts[0].Tag)
	require.Equal(t, byte(naluH264TypeSTAPA), pkts[0].Payload[0]&0x1F)
	require.Equal(t, PayloadRaw, pkts[1].Tag)
	require.True(t, pkts[1].Header.Marker)
}

func TestRTPBuilderDropsSEIUnlessKept(t *testing.T) {
	b := NewRTPBuilder(testStreamDescription(), NALUFilter{KeepAVCNaluSEI: false}, nil)
	sei := mkNALU(naluH264TypeSEI, 20)
	p := mkNALU(naluH264TypeP, 20)

	pkts, err := b.BuildVideo(0, [][]byte{sei, p}, false)
	require.NoError(t, err)
	require.Len(t, pkts, 1, "SEI must be dropped by default")

	b2 := NewRTPBuilder(testStreamDescription(), NALUFilter{KeepAVCNaluSEI: true}, nil)
	pkts2, err := b2.BuildVideo(0, [][]byte{sei, p}, false)
	require.NoError(t, err)
	require.Len(t, pkts2, 2, "SEI must be kept when configured")
}

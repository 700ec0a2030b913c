package rtc

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/require"
)

func TestRTCPEncodeDecodeRoundTrip(t *testing.T) {
	rr := BuildReceiverReport(1001, []rtcp.ReceptionReport{{SSRC: 2002, FractionLost: 0}})
	pli := BuildPLI(1001, 2002)

	buf, err := EncodeRTCP([]rtcp.Packet{rr, pli})
	require.NoError(t, err)

	decoded, err := DecodeRTCP(buf)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	gotRR, ok := decoded[0].(*rtcp.ReceiverReport)
	require.True(t, ok)
	require.Equal(t, uint32(1001), gotRR.SSRC)

	gotPLI, ok := decoded[1].(*rtcp.PictureLossIndication)
	require.True(t, ok)
	require.Equal(t, uint32(2002), gotPLI.MediaSSRC)
}

func TestBuildNACKPacksAndUnpacksSequenceNumbers(t *testing.T) {
	entries := []NackEntry{{Seq: 100}, {Seq: 101}, {Seq: 105}}
	nack := BuildNACK(1001, 2002, entries)

	got := LostSequenceNumbers(nack)
	require.ElementsMatch(t, []uint16{100, 101, 105}, got)
}

func TestBuildExtendedReportRRTR(t *testing.T) {
	xr := BuildExtendedReportRRTR(1001, 0xABCD)
	require.Len(t, xr.Reports, 1)
	block, ok := xr.Reports[0].(*rtcp.ReceiverReferenceTimeReportBlock)
	require.True(t, ok)
	require.Equal(t, uint64(0xABCD), block.NTPTimestamp)
}

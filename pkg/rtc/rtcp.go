package rtc

import (
	"github.com/pion/rtcp"

	"github.com/srs-core/mediacore/pkg/errs"
)

// DecodeRTCP unmarshals a UDP datagram payload into one or more RTCP
// packets (spec §4.9/§4.10 RTCP dispatch entry point).
func DecodeRTCP(buf []byte) ([]rtcp.Packet, error) {
	pkts, err := rtcp.Unmarshal(buf)
	if err != nil {
		return nil, errs.Wrap(errs.KindRTCSTUN, "decode rtcp", err)
	}
	return pkts, nil
}

// EncodeRTCP marshals one or more RTCP packets into a single compound
// packet for transmission.
func EncodeRTCP(pkts []rtcp.Packet) ([]byte, error) {
	buf, err := rtcp.Marshal(pkts)
	if err != nil {
		return nil, errs.Wrap(errs.KindRTCSTUN, "encode rtcp", err)
	}
	return buf, nil
}

// BuildReceiverReport builds an RTCP RR (type 201) for one SSRC (spec §4.9
// "RTCP RR timer: emit RR ... for each track").
func BuildReceiverReport(senderSSRC uint32, reports []rtcp.ReceptionReport) *rtcp.ReceiverReport {
	return &rtcp.ReceiverReport{
		SSRC:    senderSSRC,
		Reports: reports,
	}
}

// BuildExtendedReportRRTR builds an RTCP XR (type 207) carrying a single
// Receiver Reference Time Report block (spec §4.9 "emit RR + XR-RRTR").
func BuildExtendedReportRRTR(senderSSRC uint32, ntpTimestamp uint64) *rtcp.ExtendedReport {
	return &rtcp.ExtendedReport{
		SenderSSRC: senderSSRC,
		Reports: []rtcp.ReportBlock{
			&rtcp.ReceiverReferenceTimeReportBlock{NTPTimestamp: ntpTimestamp},
		},
	}
}

// BuildPLI builds an RTCP PSFB Picture Loss Indication (type 206, FMT=1)
// targeting mediaSSRC (spec §4.8 PLI worker, spec §4.3 bridge PLI timer).
func BuildPLI(senderSSRC, mediaSSRC uint32) *rtcp.PictureLossIndication {
	return &rtcp.PictureLossIndication{
		SenderSSRC: senderSSRC,
		MediaSSRC:  mediaSSRC,
	}
}

// BuildFullIntraRequest builds an RTCP PSFB FIR (type 206, FMT=4).
func BuildFullIntraRequest(senderSSRC, mediaSSRC uint32, seqNr uint8) *rtcp.FullIntraRequest {
	return &rtcp.FullIntraRequest{
		SenderSSRC: senderSSRC,
		FIR: []rtcp.FIREntry{
			{SSRC: mediaSSRC, SequenceNumber: seqNr},
		},
	}
}

// BuildNACK builds an RTCP RTPFB NACK (type 205, FMT=1) packing entries'
// sequence numbers into PID/BLP pairs (spec §4.9 NACK dispatch/generation).
func BuildNACK(senderSSRC, mediaSSRC uint32, entries []NackEntry) *rtcp.TransportLayerNack {
	seqs := make([]uint16, len(entries))
	for i, e := range entries {
		seqs[i] = e.Seq
	}
	return &rtcp.TransportLayerNack{
		SenderSSRC: senderSSRC,
		MediaSSRC:  mediaSSRC,
		Nacks:      rtcp.NackPairsFromSequenceNumbers(seqs),
	}
}

// LostSequenceNumbers expands a TransportLayerNack's PID/BLP pairs back
// into a flat list of lost sequence numbers (spec §4.9 "locate the track
// ... call track.on_recv_nack(lost_seqs)").
func LostSequenceNumbers(nack *rtcp.TransportLayerNack) []uint16 {
	var seqs []uint16
	for _, pair := range nack.Nacks {
		seqs = append(seqs, pair.PacketList()...)
	}
	return seqs
}

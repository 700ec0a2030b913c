// Package errs implements the uniform error value used across the core:
// a numeric kind, a free-form detail string, and an optional wrapped cause.
package errs

import "fmt"

// Kind classifies the origin of an Error so callers can switch on recovery
// strategy without parsing strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindRTPMuxer
	KindSRTPInit
	KindSRTPProtect
	KindSRTPUnprotect
	KindRTCDTLS
	KindRTCSDPDecode
	KindRTCSTUN
	KindTSSync
	KindTSAdaptationField
	KindTSPSICRC
	KindTSPESBoundary
	KindHLSAACFrameLength
	KindHLSAVCSampleSize
	KindHLSNoStream
	KindTSContextNotReady
	KindHTTPHooks
	KindStreamBusy
)

func (k Kind) String() string {
	switch k {
	case KindRTPMuxer:
		return "RTP_MUXER"
	case KindSRTPInit:
		return "SRTP_INIT"
	case KindSRTPProtect:
		return "SRTP_PROTECT"
	case KindSRTPUnprotect:
		return "SRTP_UNPROTECT"
	case KindRTCDTLS:
		return "RTC_DTLS"
	case KindRTCSDPDecode:
		return "RTC_SDP_DECODE"
	case KindRTCSTUN:
		return "RTC_STUN"
	case KindTSSync:
		return "STREAM_CASTER_TS_SYNC"
	case KindTSAdaptationField:
		return "STREAM_CASTER_TS_AF"
	case KindTSPSICRC:
		return "STREAM_CASTER_TS_PSI_CRC"
	case KindTSPESBoundary:
		return "STREAM_CASTER_TS_PES_BOUNDARY"
	case KindHLSAACFrameLength:
		return "HLS_AAC_FRAME_LENGTH"
	case KindHLSAVCSampleSize:
		return "HLS_AVC_SAMPLE_SIZE"
	case KindHLSNoStream:
		return "HLS_NO_STREAM"
	case KindTSContextNotReady:
		return "TS_CONTEXT_NOT_READY"
	case KindHTTPHooks:
		return "HTTP_HOOKS"
	case KindStreamBusy:
		return "SYSTEM_STREAM_BUSY"
	default:
		return "UNKNOWN"
	}
}

// Error is the uniform error value propagated through the core. A fresh
// Error is constructed at its origin with New; callers wrap it with
// Wrap(kind, detail, cause), keeping the previous error as cause and so
// building a backtrace.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so call sites
// can do errors.Is(err, errs.New(errs.KindRTPMuxer, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

package mpegts

import "math"

// ntpFractionalUnit is 2^32, the number of NTP fractional-second ticks in
// one second. Grounded on the original SrsNtp::kMagicNtpFractionalUnit.
const ntpFractionalUnit = 1 << 32

// NtpFromTimeMs converts a millisecond timestamp into a 64-bit NTP
// timestamp (32-bit seconds since the NTP epoch, 32-bit fraction).
func NtpFromTimeMs(ms uint64) uint64 {
	second := ms / 1000
	fraction := uint64(float64(ms%1000) / 1000.0 * ntpFractionalUnit)
	return (second << 32) | fraction
}

// NtpToTimeMs converts a 64-bit NTP timestamp back into milliseconds. The
// fractional part is rounded, not truncated, which is what makes
// NtpToTimeMs(NtpFromTimeMs(t)) == t hold for every t (spec §8 round-trip law).
func NtpToTimeMs(ntp uint64) uint64 {
	second := (ntp & 0xFFFFFFFF00000000) >> 32
	fraction := ntp & 0x00000000FFFFFFFF
	return second*1000 + uint64(math.Round(float64(fraction)*1000.0/ntpFractionalUnit))
}

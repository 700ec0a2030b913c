package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesRTCServerAndVhostFields(t *testing.T) {
	path := writeEnvFile(t, `
# comment
rtc_server_candidates=203.0.113.5
rtc_use_auto_detect_network_ip=false
rtc_server_ip_family=ipv4
rtc_api_as_candidates=true
rtc_keep_api_domain=true
rtc_opus_bitrate=64000
rtc_pli_for_rtmp_ms=6000
reduce_sequence_header=true
http_hooks_enabled=true
on_publish=http://a/hook, http://b/hook
listen_addr=:8085
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.5", cfg.RTCServer.Candidates)
	require.False(t, cfg.RTCServer.UseAutoDetectNetworkIP)
	require.Equal(t, IPFamilyV4, cfg.RTCServer.IPFamily)
	require.True(t, cfg.RTCServer.APIAsCandidates)
	require.True(t, cfg.RTCServer.KeepAPIDomain)
	require.Equal(t, 64000, cfg.Vhost.RTCOpusBitrate)
	require.Equal(t, 6*time.Second, cfg.Vhost.RTCPliForRTMP)
	require.True(t, cfg.Vhost.ReduceSequenceHeader)
	require.True(t, cfg.Vhost.HTTPHooksEnabled)
	require.Equal(t, []string{"http://a/hook", "http://b/hook"}, cfg.Vhost.OnPublish)
	require.Equal(t, ":8085", cfg.ListenAddr)
}

func TestLoadRejectsInvalidIPFamily(t *testing.T) {
	path := writeEnvFile(t, "rtc_server_ip_family=ipv9\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedBool(t *testing.T) {
	path := writeEnvFile(t, "rtc_use_auto_detect_network_ip=maybe\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestDefaultIsWildcardAutoDetectAllFamilies(t *testing.T) {
	cfg := Default()
	require.Equal(t, "*", cfg.RTCServer.Candidates)
	require.True(t, cfg.RTCServer.UseAutoDetectNetworkIP)
	require.Equal(t, IPFamilyAll, cfg.RTCServer.IPFamily)
	require.Equal(t, ":1985", cfg.ListenAddr)
}

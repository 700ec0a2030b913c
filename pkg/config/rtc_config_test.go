package config

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverCandidatesFiltersLoopbackAndFamily(t *testing.T) {
	cfg := RTCServerConfig{
		Candidates:             "*",
		UseAutoDetectNetworkIP: true,
		IPFamily:               IPFamilyV4,
	}
	ifaces := []NetInterface{
		{Name: "lo", IP: net.ParseIP("127.0.0.1")},
		{Name: "eth0", IP: net.ParseIP("10.0.0.5")},
		{Name: "eth1", IP: net.ParseIP("10.0.0.6")},
		{Name: "eth0", IP: net.ParseIP("fe80::1")},
	}

	got := DiscoverCandidates(cfg, "", ifaces, nil)
	require.ElementsMatch(t, []string{"10.0.0.5", "10.0.0.6"}, got)
}

func TestDiscoverCandidatesAllFamilyWithUserEIP(t *testing.T) {
	cfg := RTCServerConfig{
		Candidates:             "*",
		UseAutoDetectNetworkIP: true,
		IPFamily:               IPFamilyAll,
	}
	ifaces := []NetInterface{
		{Name: "lo", IP: net.ParseIP("127.0.0.1")},
		{Name: "eth0", IP: net.ParseIP("10.0.0.5")},
		{Name: "eth1", IP: net.ParseIP("10.0.0.6")},
		{Name: "eth0", IP: net.ParseIP("fe80::1")},
	}

	got := DiscoverCandidates(cfg, "198.51.100.20", ifaces, nil)
	require.ElementsMatch(t, []string{"10.0.0.5", "10.0.0.6", "fe80::1", "198.51.100.20"}, got)
}

func TestDiscoverCandidatesLiteralWhenNotWildcard(t *testing.T) {
	cfg := RTCServerConfig{Candidates: "203.0.113.5", UseAutoDetectNetworkIP: true}
	got := DiscoverCandidates(cfg, "", []NetInterface{{IP: net.ParseIP("10.0.0.1")}}, nil)
	require.Equal(t, []string{"203.0.113.5"}, got)
}

func TestDiscoverCandidatesAPIDomainsRequireKeepOrResolve(t *testing.T) {
	cfg := RTCServerConfig{Candidates: "203.0.113.5", APIAsCandidates: true}
	got := DiscoverCandidates(cfg, "", nil, []string{"api.example.com"})
	require.Equal(t, []string{"203.0.113.5"}, got, "neither KeepAPIDomain nor ResolveAPIDomain set")

	cfg.KeepAPIDomain = true
	got = DiscoverCandidates(cfg, "", nil, []string{"api.example.com"})
	require.Equal(t, []string{"203.0.113.5", "api.example.com"}, got)
}

func TestDiscoverCandidatesAutoDetectDisabledUsesLiteral(t *testing.T) {
	cfg := RTCServerConfig{Candidates: "*", UseAutoDetectNetworkIP: false}
	got := DiscoverCandidates(cfg, "", []NetInterface{{IP: net.ParseIP("10.0.0.1")}}, nil)
	require.Equal(t, []string{"*"}, got)
}

func TestRTCServerConfigGetters(t *testing.T) {
	cfg := RTCServerConfig{
		Candidates:             "*",
		UseAutoDetectNetworkIP: true,
		IPFamily:               IPFamilyV6,
		APIAsCandidates:        true,
		KeepAPIDomain:          true,
		ResolveAPIDomain:       false,
	}
	require.Equal(t, "*", cfg.GetRTCServerCandidates())
	require.True(t, cfg.GetUseAutoDetectNetworkIP())
	require.Equal(t, IPFamilyV6, cfg.GetRTCServerIPFamily())
	require.True(t, cfg.GetAPIAsCandidates())
	require.True(t, cfg.GetKeepAPIDomain())
	require.False(t, cfg.GetResolveAPIDomain())
}

func TestParseHookURLs(t *testing.T) {
	require.Equal(t, []string{"http://a", "http://b"}, ParseHookURLs("http://a, http://b"))
	require.Nil(t, ParseHookURLs(""))
	require.Equal(t, []string{"http://a"}, ParseHookURLs(" http://a , , "))
}

package config

import (
	"net"
	"strings"
	"time"
)

// IPFamily is the address family filter applied to candidate discovery
// (spec §6 "get_rtc_server_ip_family() -> ipv4|ipv6|all").
type IPFamily string

const (
	IPFamilyV4  IPFamily = "ipv4"
	IPFamilyV6  IPFamily = "ipv6"
	IPFamilyAll IPFamily = "all"
)

// RTCServerConfig groups the CLI/config collaborator surface spec §6 names
// as externally supplied: `get_rtc_server_candidates()`,
// `get_use_auto_detect_network_ip()`, `get_rtc_server_ip_family()`,
// `get_api_as_candidates()`, `get_keep_api_domain()`,
// `get_resolve_api_domain()`. Grouped as a plain struct with getter methods,
// matching the teacher's GoogleConfig/CloudflareConfig grouping.
type RTCServerConfig struct {
	Candidates              string
	UseAutoDetectNetworkIP  bool
	IPFamily                IPFamily
	APIAsCandidates         bool
	KeepAPIDomain           bool
	ResolveAPIDomain        bool
}

func (c RTCServerConfig) GetRTCServerCandidates() string      { return c.Candidates }
func (c RTCServerConfig) GetUseAutoDetectNetworkIP() bool     { return c.UseAutoDetectNetworkIP }
func (c RTCServerConfig) GetRTCServerIPFamily() IPFamily      { return c.IPFamily }
func (c RTCServerConfig) GetAPIAsCandidates() bool            { return c.APIAsCandidates }
func (c RTCServerConfig) GetKeepAPIDomain() bool              { return c.KeepAPIDomain }
func (c RTCServerConfig) GetResolveAPIDomain() bool           { return c.ResolveAPIDomain }

// VhostConfig groups the per-vhost flags of spec §6: NALU filtering policy,
// transcoder bitrates, the RTC-bridge PLI-for-RTMP interval, the
// sequence-header dedup switch, and the HTTP hook URL lists.
type VhostConfig struct {
	RTCKeepBFrame       bool
	RTCKeepAVCNaluSEI   bool
	RTCServerMergeNalus bool

	RTCOpusBitrate int
	RTCAACBitrate  int

	// RTCPliForRTMP is the configured pli_for_rtmp interval; spec §6 names it
	// in microseconds, stored here as a time.Duration. The RTC bridge's PLI
	// timer does not read it; the bridge requests a keyframe on every 100ms
	// tick.
	RTCPliForRTMP time.Duration

	ReduceSequenceHeader bool

	HTTPHooksEnabled bool
	OnConnect        []string
	OnClose          []string
	OnPublish        []string
	OnUnpublish      []string
	OnPlay           []string
	OnStop           []string
}

// NetInterface is the minimal network-interface shape candidate discovery
// needs, decoupled from net.Interface so tests can supply a fixed scenario
// instead of the host's real interfaces (spec §8 scenario 6).
type NetInterface struct {
	Name string
	IP   net.IP
}

// isLoopback reports whether ip is a loopback address (127.0.0.0/8, ::1) or
// the unspecified address (0.0.0.0, ::), both excluded from discovery (spec
// §6 "filter out loopback (127.*, 0.0.0.0, ::)").
func isLoopback(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsUnspecified()
}

func matchesFamily(ip net.IP, family IPFamily) bool {
	isV4 := ip.To4() != nil
	switch family {
	case IPFamilyV4:
		return isV4
	case IPFamilyV6:
		return !isV4
	default:
		return true
	}
}

// DiscoverCandidates implements spec §6's candidate discovery: when
// candidates="*" and auto-detect is enabled, scans ifaces, drops loopback
// and unspecified addresses, and keeps only the configured family; a
// non-"*" candidate is used literally instead. eip (a user-supplied
// request-level eip) is always appended. apiDomains are appended only when
// APIAsCandidates is set and (KeepAPIDomain or ResolveAPIDomain) holds.
func DiscoverCandidates(cfg RTCServerConfig, eip string, ifaces []NetInterface, apiDomains []string) []string {
	var out []string

	if cfg.Candidates == "*" && cfg.UseAutoDetectNetworkIP {
		for _, iface := range ifaces {
			if isLoopback(iface.IP) {
				continue
			}
			if !matchesFamily(iface.IP, cfg.IPFamily) {
				continue
			}
			out = append(out, iface.IP.String())
		}
	} else if cfg.Candidates != "" {
		out = append(out, cfg.Candidates)
	}

	if eip != "" {
		out = append(out, eip)
	}

	if cfg.APIAsCandidates && (cfg.KeepAPIDomain || cfg.ResolveAPIDomain) {
		out = append(out, apiDomains...)
	}

	return out
}

// SystemInterfaces enumerates all of the host's network interface addresses,
// loopback included, for production use, feeding DiscoverCandidates outside
// tests (DiscoverCandidates drops the loopback ones). Name is left empty.
func SystemInterfaces() ([]NetInterface, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var out []NetInterface
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		out = append(out, NetInterface{IP: ipNet.IP})
	}
	return out, nil
}

// ParseHookURLs splits a comma-separated hook URL list, trimming whitespace
// around each entry and dropping empties, matching the teacher's
// key=value-line config parsing style for list-valued fields.
func ParseHookURLs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the §6 external collaborator surface as loaded from an env
// file, plus the HTTP status server's listen address.
type Config struct {
	RTCServer  RTCServerConfig
	Vhost      VhostConfig
	ListenAddr string
}

// Default returns the configuration cmd/server falls back to when no env
// file is supplied: wildcard candidates with auto-detect, all address
// families, hooks disabled.
func Default() *Config {
	return &Config{
		RTCServer: RTCServerConfig{
			Candidates:             "*",
			UseAutoDetectNetworkIP: true,
			IPFamily:               IPFamilyAll,
		},
		ListenAddr: ":1985",
	}
}

// Load reads configuration from a key=value env file, the same shape the
// teacher's credential loader used, re-pointed at this module's §6
// collaborator fields instead of Google/Cloudflare credentials.
func Load(envPath string) (*Config, error) {
	file, err := os.Open(envPath)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}

		if err := cfg.set(key, decodedValue); err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "rtc_server_candidates":
		c.RTCServer.Candidates = value
	case "rtc_use_auto_detect_network_ip":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.RTCServer.UseAutoDetectNetworkIP = b
	case "rtc_server_ip_family":
		c.RTCServer.IPFamily = IPFamily(value)
	case "rtc_api_as_candidates":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.RTCServer.APIAsCandidates = b
	case "rtc_keep_api_domain":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.RTCServer.KeepAPIDomain = b
	case "rtc_resolve_api_domain":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.RTCServer.ResolveAPIDomain = b
	case "rtc_keep_bframe":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Vhost.RTCKeepBFrame = b
	case "rtc_keep_avc_nalu_sei":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Vhost.RTCKeepAVCNaluSEI = b
	case "rtc_server_merge_nalus":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Vhost.RTCServerMergeNalus = b
	case "rtc_opus_bitrate":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Vhost.RTCOpusBitrate = n
	case "rtc_aac_bitrate":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Vhost.RTCAACBitrate = n
	case "rtc_pli_for_rtmp_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Vhost.RTCPliForRTMP = time.Duration(n) * time.Millisecond
	case "reduce_sequence_header":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Vhost.ReduceSequenceHeader = b
	case "http_hooks_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Vhost.HTTPHooksEnabled = b
	case "on_connect":
		c.Vhost.OnConnect = ParseHookURLs(value)
	case "on_close":
		c.Vhost.OnClose = ParseHookURLs(value)
	case "on_publish":
		c.Vhost.OnPublish = ParseHookURLs(value)
	case "on_unpublish":
		c.Vhost.OnUnpublish = ParseHookURLs(value)
	case "on_play":
		c.Vhost.OnPlay = ParseHookURLs(value)
	case "on_stop":
		c.Vhost.OnStop = ParseHookURLs(value)
	case "listen_addr":
		c.ListenAddr = value
	}
	return nil
}

// Validate checks the fields that have a fixed set of legal values.
func (c *Config) Validate() error {
	switch c.RTCServer.IPFamily {
	case IPFamilyV4, IPFamilyV6, IPFamilyAll:
	default:
		return fmt.Errorf("invalid rtc_server_ip_family: %q (must be ipv4, ipv6, or all)", c.RTCServer.IPFamily)
	}
	return nil
}

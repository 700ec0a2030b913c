package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel    string
	LogFormat   string
	LogFile     string
	DebugRTP    bool
	DebugNack   bool
	DebugTS     bool
	DebugRTC    bool
	DebugSource bool
	DebugAll    bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	// Debug category flags
	fs.BoolVar(&f.DebugRTP, "debug-rtp", false,
		"Enable detailed RTP packet debugging (sequence, timestamp, payload)")
	fs.BoolVar(&f.DebugNack, "debug-nack", false,
		"Enable NACK/PLI/retransmission debugging")
	fs.BoolVar(&f.DebugTS, "debug-ts", false,
		"Enable MPEG-TS mux/demux debugging (PAT/PMT/PES)")
	fs.BoolVar(&f.DebugRTC, "debug-rtc", false,
		"Enable WebRTC session debugging (publish/play lifecycle, RTCP)")
	fs.BoolVar(&f.DebugSource, "debug-source", false,
		"Enable routing-plane debugging (gop cache, meta cache, origin hub)")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	// Parse log level
	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	// Parse format
	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	// Set output file
	cfg.OutputFile = f.LogFile

	// Enable debug categories
	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		// Force debug level when any debug category is enabled
		cfg.Level = LevelDebug
	} else {
		if f.DebugRTP {
			cfg.EnableCategory(DebugRTP)
			cfg.Level = LevelDebug
		}
		if f.DebugNack {
			cfg.EnableCategory(DebugNack)
			cfg.Level = LevelDebug
		}
		if f.DebugTS {
			cfg.EnableCategory(DebugTS)
			cfg.Level = LevelDebug
		}
		if f.DebugRTC {
			cfg.EnableCategory(DebugRTC)
			cfg.Level = LevelDebug
		}
		if f.DebugSource {
			cfg.EnableCategory(DebugSource)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./mediacore

  Enable DEBUG level:
    ./mediacore --log-level debug
    ./mediacore -l debug

  Log to file:
    ./mediacore --log-file mediacore.log
    ./mediacore -o mediacore.log

  JSON format for structured logging:
    ./mediacore --log-format json -o mediacore.json

  Debug RTP packets only:
    ./mediacore --debug-rtp

  Debug MPEG-TS muxing only:
    ./mediacore --debug-ts

  Debug multiple categories:
    ./mediacore --debug-rtp --debug-nack --debug-rtc

  Debug everything:
    ./mediacore --debug-all -o debug.log

  Production logging (WARN level, JSON to file):
    ./mediacore -l warn --log-format json -o production.log
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		if f.DebugRTP {
			debugCategories = append(debugCategories, "rtp")
		}
		if f.DebugNack {
			debugCategories = append(debugCategories, "nack")
		}
		if f.DebugTS {
			debugCategories = append(debugCategories, "ts")
		}
		if f.DebugRTC {
			debugCategories = append(debugCategories, "rtc")
		}
		if f.DebugSource {
			debugCategories = append(debugCategories, "source")
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}

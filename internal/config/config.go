// Package config parses the CLI surface spec.md §6 defines, via
// cobra/pflag (SPEC_FULL.md §10.3) — the same stack the example pack's
// telepresence CLI uses. There is no persistent configuration (spec.md
// §6: "Persistent state: None"); every tunable here is a process flag
// that defaults to the spec's fixed constants.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ventosilenzioso/ordudp/internal/handshake"
	"github.com/ventosilenzioso/ordudp/internal/timer"
	"github.com/ventosilenzioso/ordudp/internal/wire"
)

// Initiator holds the initiator's parsed CLI surface: `<program> <hostname> <port>`.
type Initiator struct {
	Host string
	Port int
	Tuning
}

// Responder holds the responder's parsed CLI surface: `<program> <port>`.
type Responder struct {
	Port int
	Tuning
}

// Tuning is the set of optional flags shared by both roles, all defaulting
// to the spec's fixed constants so default behavior is unchanged.
type Tuning struct {
	RTOMicros int
	DupAcks   int
	Window    int
	Seed      int64
	LogLevel  string
}

func addTuningFlags(flags *pflag.FlagSet, t *Tuning) {
	flags.IntVar(&t.RTOMicros, "rto", 3000, "retransmission timeout, in microseconds")
	flags.IntVar(&t.DupAcks, "dup-acks", 3, "consecutive duplicate ACKs that trigger a fast retransmit")
	flags.IntVar(&t.Window, "window", wire.MaxPayload, "advertised receive window, in bytes")
	flags.Int64Var(&t.Seed, "seed", 0, "PRNG seed for the initial sequence number (0 = seed from entropy)")
	flags.StringVar(&t.LogLevel, "log-level", "info", "diagnostics log level: debug, info, warn, error")
}

// Apply pushes the parsed tuning values into the package-level knobs the
// timer package reads, and returns the parsed log level.
func (t Tuning) Apply() (logrus.Level, error) {
	timer.RTO = time.Duration(t.RTOMicros) * time.Microsecond
	timer.DupACKThreshold = t.DupAcks
	handshake.MinWindow = uint16(t.Window)

	level, err := logrus.ParseLevel(t.LogLevel)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid --log-level %q", t.LogLevel)
	}
	return level, nil
}

// ParseInitiatorArgs parses `<program> <hostname> <port>` plus tuning
// flags, per spec.md §6. hostname is rewritten from "localhost" to
// "127.0.0.1" and otherwise validated as a dotted-quad IPv4 address.
func ParseInitiatorArgs(argv []string) (*Initiator, error) {
	cfg := &Initiator{}
	cmd := &cobra.Command{
		Use:           "initiator <hostname> <port>",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := normalizeHost(args[0])
			if err != nil {
				return err
			}
			port, err := parsePort(args[1])
			if err != nil {
				return err
			}
			cfg.Host = host
			cfg.Port = port
			return nil
		},
	}
	addTuningFlags(cmd.Flags(), &cfg.Tuning)
	cmd.SetArgs(argv)
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseResponderArgs parses `<program> <port>` plus tuning flags, per
// spec.md §6. The responder always binds 0.0.0.0:<port>.
func ParseResponderArgs(argv []string) (*Responder, error) {
	cfg := &Responder{}
	cmd := &cobra.Command{
		Use:           "responder <port>",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}
			cfg.Port = port
			return nil
		},
	}
	addTuningFlags(cmd.Flags(), &cfg.Tuning)
	cmd.SetArgs(argv)
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeHost(host string) (string, error) {
	if host == "localhost" {
		return "127.0.0.1", nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return host, nil
	}
	return "", errors.Errorf("hostname %q is not \"localhost\" or a dotted-quad IPv4 address", host)
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid port %q", raw)
	}
	if port < 1 || port > 65535 {
		return 0, errors.Errorf("port %d out of range", port)
	}
	return port, nil
}

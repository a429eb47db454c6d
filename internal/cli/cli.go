// Package cli 는 coaphex-udp / coaphex-dtls 실행 파일의 cobra 명령을 구성합니다.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dalbodeule/coaphex/internal/config"
	"github.com/dalbodeule/coaphex/internal/transport"
)

// Variant 는 전송 계층 종류입니다.
type Variant string

const (
	VariantUDP  Variant = "udp"
	VariantDTLS Variant = "dtls"
)

// runBridge 는 테스트에서 교체할 수 있습니다.
var runBridge = run

// options 는 CLI 인자입니다. 지정된 값만 설정(env/.env/파일)을 덮어씁니다.
type options struct {
	configFile    string
	logLevel      string
	logFile       string
	metricsListen string

	recvBuffer int
	sendRate   float64
	sendBurst  int64
	udpTTL     int

	port             int
	pskIdentity      string
	pskKey           string
	handshakeTimeout time.Duration
}

// invocation 은 설정과 위치 인자를 합친 최종 실행 계획입니다.
type invocation struct {
	variant Variant
	cfg     *config.Config
	host    string
	port    int
	child   []string
}

// NewUDPCommand 는 평문 UDP 브리지 명령을 만듭니다.
//
//	coaphex-udp [flags] <host> <port> [child-command...]
func NewUDPCommand() *cobra.Command {
	return newCommand(VariantUDP)
}

// NewDTLSCommand 는 DTLS(PSK) 브리지 명령을 만듭니다. 원격 포트는 기본 5684 입니다.
//
//	coaphex-dtls [flags] <host> [child-command...]
func NewDTLSCommand() *cobra.Command {
	return newCommand(VariantDTLS)
}

func newCommand(v Variant) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "coaphex-udp <host> <port> [child-command...]",
		Short:         "Bridge COAPHEX hex lines to CoAP over UDP",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if v == VariantDTLS {
		cmd.Use = "coaphex-dtls <host> [child-command...]"
		cmd.Short = "Bridge COAPHEX hex lines to CoAP over DTLS (PSK)"
		cmd.Args = cobra.MinimumNArgs(1)
	}
	cmd.Long = cmd.Short + `.

Lines "COAPHEX:<hex>" read from stdin (or the child's stdout) are sent as one
datagram each. Received datagrams are written as "COAPHEX:<HEX>" lines to
stdout (or the child's stdin). Any other input line is copied to the log.`

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		inv, err := opts.resolve(cmd, v, args)
		if err != nil {
			return err
		}
		return runBridge(cmd, inv)
	}

	// 자식 명령의 인자(-jar 등)가 플래그로 해석되지 않도록 첫 위치 인자 이후는 그대로 둔다.
	cmd.Flags().SetInterspersed(false)

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "YAML config file (overrides COAPHEX_CONFIG_FILE)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFile, "log-file", "", "also write logs to this rotating file")
	f.StringVar(&opts.metricsListen, "metrics-listen", "", "serve Prometheus /metrics on this address, e.g. :9100")
	f.IntVar(&opts.recvBuffer, "recv-buffer", 0, "receive buffer size in bytes; larger datagrams are truncated")
	f.Float64Var(&opts.sendRate, "send-rate", 0, "max packets per second sent, 0 for unlimited")
	f.Int64Var(&opts.sendBurst, "send-burst", 0, "send burst size when --send-rate is set")
	if v == VariantUDP {
		f.IntVar(&opts.udpTTL, "ttl", 0, "IPv4 TTL for outgoing datagrams, 0 for the OS default")
	}
	if v == VariantDTLS {
		f.IntVar(&opts.port, "port", 0, "remote DTLS port (default 5684)")
		f.StringVar(&opts.pskIdentity, "psk-identity", "", "PSK identity")
		f.StringVar(&opts.pskKey, "psk-key", "", `PSK secret, plain or "hex:"-prefixed`)
		f.DurationVar(&opts.handshakeTimeout, "handshake-timeout", 0, "DTLS handshake timeout")
	}

	return cmd
}

// resolve 는 설정을 읽고 CLI 인자로 덮어쓴 뒤 위치 인자를 해석합니다.
func (o *options) resolve(cmd *cobra.Command, v Variant, args []string) (*invocation, error) {
	cfg, err := config.LoadFrom(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	o.applyTo(cmd, cfg)

	inv := &invocation{variant: v, cfg: cfg, host: strings.TrimSpace(args[0])}
	switch v {
	case VariantUDP:
		port, err := transport.ParsePort(args[1])
		if err != nil {
			return nil, err
		}
		inv.port = port
		inv.child = args[2:]
	case VariantDTLS:
		if err := cfg.DTLS.Validate(); err != nil {
			return nil, err
		}
		inv.port = cfg.DTLS.Port
		inv.child = args[1:]
	default:
		return nil, fmt.Errorf("unknown variant %q", v)
	}
	if len(inv.child) == 0 {
		inv.child = nil
	}
	return inv, nil
}

// applyTo 는 명시적으로 지정된 플래그만 cfg 에 덮어씁니다.
func (o *options) applyTo(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	cfg.Logging.Level = config.FirstNonEmpty(o.logLevel, cfg.Logging.Level)
	cfg.Logging.File = config.FirstNonEmpty(o.logFile, cfg.Logging.File)
	cfg.MetricsListen = config.FirstNonEmpty(o.metricsListen, cfg.MetricsListen)

	if changed("recv-buffer") {
		cfg.Transport.RecvBufferSize = o.recvBuffer
	}
	if changed("send-rate") {
		cfg.Transport.SendRate = o.sendRate
	}
	if changed("send-burst") {
		cfg.Transport.SendBurst = o.sendBurst
	}
	if changed("ttl") {
		cfg.Transport.UDPTTL = o.udpTTL
	}

	if changed("port") {
		cfg.DTLS.Port = o.port
	}
	cfg.DTLS.PSKIdentity = config.FirstNonEmpty(o.pskIdentity, cfg.DTLS.PSKIdentity)
	cfg.DTLS.PSKKey = config.FirstNonEmpty(o.pskKey, cfg.DTLS.PSKKey)
	if changed("handshake-timeout") {
		cfg.DTLS.HandshakeTimeout = o.handshakeTimeout
	}
}

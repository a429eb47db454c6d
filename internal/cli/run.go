package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dalbodeule/coaphex/internal/bridge"
	"github.com/dalbodeule/coaphex/internal/childproc"
	"github.com/dalbodeule/coaphex/internal/config"
	"github.com/dalbodeule/coaphex/internal/logging"
	"github.com/dalbodeule/coaphex/internal/observability"
	"github.com/dalbodeule/coaphex/internal/transport"
)

// run 은 전송 계층과 입출력을 준비하고 브리지를 끝까지 실행합니다.
// 준비 단계의 실패는 모두 시작 실패로 간주하여 에러를 반환합니다.
func run(cmd *cobra.Command, inv *invocation) (retErr error) {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	cfg := inv.cfg

	logger := logging.New("coaphex-"+string(inv.variant), logging.Options{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Output:     cmd.ErrOrStderr(),
	})

	fail := func(msg string, err error) error {
		logger.Error(msg, logging.Fields{"error": err.Error()})
		return fmt.Errorf("%s: %w", msg, err)
	}

	// 1. 원격 주소 해석
	ep, err := transport.ResolveEndpoint(inv.host, inv.port)
	if err != nil {
		return fail("resolve remote endpoint", err)
	}

	startFields := logging.Fields{
		"variant":     string(inv.variant),
		"remote":      ep.String(),
		"child":       inv.child,
		"recv_buffer": recvBuffer(inv),
		"send_rate":   cfg.Transport.SendRate,
	}
	if inv.variant == VariantDTLS {
		for k, v := range pskLogFields(cfg.DTLS) {
			startFields[k] = v
		}
	}
	logger.Info("coaphex bridge starting", startFields)

	// 2. 메트릭 엔드포인트(선택)
	if cfg.MetricsListen != "" {
		observability.MustRegister()
		go func() {
			if err := observability.Serve(ctx, cfg.MetricsListen, logger); err != nil {
				logger.Error("metrics endpoint failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	// 3. 전송 계층
	t, err := openTransport(inv, ep, logger)
	if err != nil {
		return fail("open transport", err)
	}
	defer t.Close()

	// 4. 입출력: 자식 프로세스 파이프 또는 표준 입출력
	var (
		in  io.Reader = cmd.InOrStdin()
		out io.Writer = cmd.OutOrStdout()
	)
	if len(inv.child) > 0 {
		proc, err := childproc.Start(ctx, inv.child, logger)
		if err != nil {
			return fail("start child process", err)
		}
		defer func() {
			// 비정상 종료 시 자식이 stdin EOF 를 무시하더라도 기다리지 않도록 먼저 종료시킨다.
			if retErr != nil {
				cancel()
			}
			_ = proc.Close()
		}()
		in, out = proc.Stdout, proc.Stdin
	}

	b, err := bridge.New(bridge.Options{
		Transport:      transport.Throttle(t, cfg.Transport.SendRate, cfg.Transport.SendBurst),
		Input:          in,
		Output:         out,
		RecvBufferSize: recvBuffer(inv),
		Logger:         logger,
	})
	if err != nil {
		return fail("create bridge", err)
	}
	return b.Run(ctx)
}

func openTransport(inv *invocation, ep transport.Endpoint, logger logging.Logger) (transport.Transport, error) {
	cfg := inv.cfg
	switch inv.variant {
	case VariantDTLS:
		key, err := cfg.DTLS.PSKKeyBytes()
		if err != nil {
			return nil, err
		}
		return transport.NewDTLS(ep, transport.DTLSOptions{
			PSKIdentity:      []byte(cfg.DTLS.PSKIdentity),
			PSK:              key,
			HandshakeTimeout: cfg.DTLS.HandshakeTimeout,
			Logger:           logger,
		})
	default:
		return transport.NewUDP(ep, transport.UDPOptions{
			TTL:    cfg.Transport.UDPTTL,
			Logger: logger,
		})
	}
}

func recvBuffer(inv *invocation) int {
	if inv.variant == VariantDTLS {
		return inv.cfg.RecvBufferOrDefault(config.DefaultDTLSRecvBuffer)
	}
	return inv.cfg.RecvBufferOrDefault(config.DefaultUDPRecvBuffer)
}

// pskLogFields 는 시작 로그용 PSK 정보입니다. 비밀값은 길이만 남깁니다.
func pskLogFields(c config.DTLSConfig) logging.Fields {
	key, err := c.PSKKeyBytes()
	if err != nil {
		key = nil
	}
	return logging.Fields{
		"psk_identity":  c.PSKIdentity,
		"psk_key_bytes": len(key),
	}
}

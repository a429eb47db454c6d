package dtls

import (
	"context"
	"fmt"
	"time"

	"github.com/dalbodeule/coaphex/internal/logging"
	"github.com/dalbodeule/coaphex/internal/observability"
)

// ClientHandshakeResult 는 클라이언트 측에서 핸드셰이크가 완료된 후의 정보를 담습니다.
type ClientHandshakeResult struct {
	SessionID string
	Elapsed   time.Duration
}

// PerformClientHandshake 는 DTLS PSK 핸드셰이크를 명시적으로 수행하고
// 결과를 로그와 메트릭(coaphex_dtls_handshakes_total)에 기록합니다.
//
// timeout 이 0 보다 크면 ctx 에 추가로 적용됩니다.
func PerformClientHandshake(
	ctx context.Context,
	sess Session,
	logger logging.Logger,
	timeout time.Duration,
) (*ClientHandshakeResult, error) {
	log := logger.With(logging.Fields{"phase": "dtls_handshake", "side": "client", "session_id": sess.ID()})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := sess.HandshakeContext(ctx)
	elapsed := time.Since(start)
	observability.DTLSHandshakeDurationSeconds.Observe(elapsed.Seconds())

	if err != nil {
		observability.DTLSHandshakesTotal.WithLabelValues("failure").Inc()
		log.Error("dtls handshake failed", logging.Fields{
			"error":      err.Error(),
			"elapsed_ms": elapsed.Milliseconds(),
		})
		return nil, fmt.Errorf("dtls handshake: %w", err)
	}

	observability.DTLSHandshakesTotal.WithLabelValues("success").Inc()
	log.Info("dtls handshake success", logging.Fields{
		"elapsed_ms": elapsed.Milliseconds(),
	})

	return &ClientHandshakeResult{
		SessionID: sess.ID(),
		Elapsed:   elapsed,
	}, nil
}

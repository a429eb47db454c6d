package bridge

import (
	"context"
	"fmt"

	"github.com/dalbodeule/coaphex/internal/logging"
	"github.com/dalbodeule/coaphex/internal/observability"
	"github.com/dalbodeule/coaphex/internal/transport"
)

// Sender 는 고정된 Endpoint 로 패킷을 보냅니다. 재시도는 하지 않습니다.
type Sender struct {
	t      transport.Transport
	logger logging.Logger
}

// NewSender 는 열린 Transport 위에 Sender 를 만듭니다.
func NewSender(t transport.Transport, logger logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Sender{
		t:      t,
		logger: logger.With(logging.Fields{"component": "sender"}),
	}
}

// Endpoint 는 송신 대상 Endpoint 입니다.
func (s *Sender) Endpoint() transport.Endpoint {
	return s.t.Endpoint()
}

// Send 는 payload 를 하나의 패킷으로 보냅니다. 실패는 감싸서 그대로 반환합니다.
func (s *Sender) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.t.WritePacket(payload); err != nil {
		observability.TransportErrorsTotal.WithLabelValues("send").Inc()
		return fmt.Errorf("send %d bytes to %s: %w", len(payload), s.t.Endpoint(), err)
	}
	observability.PacketsSentTotal.Inc()
	observability.BytesTotal.WithLabelValues("out").Add(float64(len(payload)))
	s.logger.Debug("packet sent", logging.Fields{
		"bytes":  len(payload),
		"remote": s.t.Endpoint().String(),
	})
	return nil
}

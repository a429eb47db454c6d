package bridge

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/dalbodeule/coaphex/internal/hexline"
	"github.com/dalbodeule/coaphex/internal/logging"
	"github.com/dalbodeule/coaphex/internal/observability"
	"github.com/dalbodeule/coaphex/internal/transport"
)

// PacketHandler 는 수신된 패킷 하나를 처리합니다. (ko)
// PacketHandler consumes one received packet. (en)
//
// pkt 는 호출마다 새로 할당된 슬라이스이므로 핸들러가 보관해도 됩니다.
type PacketHandler interface {
	HandlePacket(ctx context.Context, pkt []byte) error
}

// PacketHandlerFunc 는 함수를 PacketHandler 로 사용하기 위한 어댑터입니다.
type PacketHandlerFunc func(ctx context.Context, pkt []byte) error

func (f PacketHandlerFunc) HandlePacket(ctx context.Context, pkt []byte) error {
	return f(ctx, pkt)
}

// HexLineHandler 는 패킷을 "COAPHEX:<HEX>" 한 줄로 Sink 에 씁니다. 기본 핸들러입니다.
type HexLineHandler struct {
	Sink *Sink
}

func (h HexLineHandler) HandlePacket(_ context.Context, pkt []byte) error {
	return h.Sink.WriteLine(hexline.FormatLine(pkt))
}

// Receiver 는 전송 계층에서 패킷을 하나씩 받아 PacketHandler 로 넘기는 루프입니다.
type Receiver struct {
	t       transport.Transport
	handler PacketHandler
	bufSize int
	logger  logging.Logger

	// newBackOff 는 연속된 수신 에러 사이의 대기 시간을 만듭니다.
	newBackOff func() backoff.BackOff
}

// NewReceiver 는 bufSize 크기의 고정 스크래치 버퍼를 쓰는 Receiver 를 만듭니다.
func NewReceiver(t transport.Transport, h PacketHandler, bufSize int, logger logging.Logger) *Receiver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Receiver{
		t:       t,
		handler: h,
		bufSize: bufSize,
		logger:  logger.With(logging.Fields{"component": "receiver"}),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Run 은 ctx 가 끝나거나 Transport 가 닫힐 때까지 수신 루프를 돕니다.
//
// 패킷 단위 에러는 기록만 하고 계속 진행합니다. 다음 경우에만 에러를 반환합니다.
//   - Transport 가 ErrFailed 를 보고한 경우
//   - 출력 Sink 가 깨진 경우(ErrOutput)
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, r.bufSize)
	bo := r.newBackOff()

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.t.ReadPacket(buf)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrClosed):
				return nil
			case errors.Is(err, transport.ErrFailed):
				r.logger.Error("transport failed, stopping receiver", logging.Fields{"error": err.Error()})
				return err
			}
			observability.TransportErrorsTotal.WithLabelValues("receive").Inc()
			wait := bo.NextBackOff()
			r.logger.Warn("packet receive failed", logging.Fields{
				"error":   err.Error(),
				"wait_ms": wait.Milliseconds(),
			})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		pkt := bytes.Clone(buf[:n])
		if pkt == nil {
			pkt = []byte{}
		}
		observability.PacketsReceivedTotal.Inc()
		observability.BytesTotal.WithLabelValues("in").Add(float64(n))
		r.logger.Debug("packet received", logging.Fields{"bytes": n})

		if err := r.handler.HandlePacket(ctx, pkt); err != nil {
			observability.TransportErrorsTotal.WithLabelValues("output").Inc()
			if errors.Is(err, ErrOutput) {
				r.logger.Error("output sink failed, stopping receiver", logging.Fields{"error": err.Error()})
				return err
			}
			r.logger.Warn("packet handler failed", logging.Fields{"error": err.Error()})
		}
	}
}

// Package bridge 는 줄 단위 COAPHEX 텍스트 스트림과 데이터그램 Transport 를 잇습니다.
//
//   - 입력 스트림의 "COAPHEX:<HEX>" 줄은 패킷 하나로 전송됩니다.
//   - 수신된 패킷은 "COAPHEX:<HEX>" 줄로 출력 스트림에 쓰입니다.
//
// 두 방향은 서로 독립적으로 동시에 진행됩니다.
package bridge

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/dalbodeule/coaphex/internal/logging"
	"github.com/dalbodeule/coaphex/internal/transport"
)

// Options 는 Bridge 구성입니다.
type Options struct {
	Transport transport.Transport
	Input     io.Reader
	Output    io.Writer

	// Handler 가 nil 이면 Output 으로 COAPHEX 줄을 쓰는 HexLineHandler 를 사용합니다.
	Handler PacketHandler

	// RecvBufferSize 는 수신 버퍼 크기입니다. 이보다 큰 패킷은 잘립니다.
	RecvBufferSize int

	Logger logging.Logger
}

// Bridge 는 LineReader(입력 → Transport)와 Receiver(Transport → 출력)를 함께 돌립니다.
type Bridge struct {
	t        transport.Transport
	reader   *LineReader
	receiver *Receiver
	logger   logging.Logger
}

// New 는 Options 를 검증하고 Bridge 를 만듭니다.
func New(opts Options) (*Bridge, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("bridge: transport is required")
	}
	if opts.Input == nil {
		return nil, fmt.Errorf("bridge: input is required")
	}
	if opts.RecvBufferSize <= 0 {
		return nil, fmt.Errorf("bridge: receive buffer size must be positive, got %d", opts.RecvBufferSize)
	}
	handler := opts.Handler
	if handler == nil {
		if opts.Output == nil {
			return nil, fmt.Errorf("bridge: output or handler is required")
		}
		handler = HexLineHandler{Sink: NewSink(opts.Output)}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	sender := NewSender(opts.Transport, logger)
	return &Bridge{
		t:        opts.Transport,
		reader:   NewLineReader(opts.Input, sender, logger),
		receiver: NewReceiver(opts.Transport, handler, opts.RecvBufferSize, logger),
		logger:   logger,
	}, nil
}

// Run 은 입력이 끝나거나 ctx 가 취소되거나 치명적 에러가 날 때까지 블록합니다.
//
// 입력 EOF 와 ctx 취소는 nil 을, transport.ErrFailed 나 출력 실패는 에러를 반환합니다.
// 반환 전에 Transport 는 닫힙니다.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.receiver.Run(gctx)
	})
	g.Go(func() error {
		// 블록된 ReadPacket 을 깨우기 위해 취소 시 Transport 를 닫는다.
		<-gctx.Done()
		if err := b.t.Close(); err != nil {
			b.logger.Warn("transport close failed", logging.Fields{"error": err.Error()})
		}
		return nil
	})

	// 입력 읽기는 블록된 Read 를 중단할 수 없으므로 errgroup 밖에서 돌린다.
	readDone := make(chan error, 1)
	go func() {
		readDone <- b.reader.Run(gctx)
	}()

	var err error
	select {
	case err = <-readDone:
	case <-gctx.Done():
	}
	cancel()

	if werr := g.Wait(); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		b.logger.Error("bridge stopped", logging.Fields{"error": err.Error()})
		return err
	}
	b.logger.Info("bridge stopped", nil)
	return nil
}

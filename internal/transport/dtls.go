package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dalbodeule/coaphex/internal/dtls"
	"github.com/dalbodeule/coaphex/internal/logging"
)

// DTLSOptions 는 DTLS 변형 설정입니다.
type DTLSOptions struct {
	PSKIdentity      []byte
	PSK              []byte
	HandshakeTimeout time.Duration
	Logger           logging.Logger

	// Client 가 nil 이면 pion/dtls 기반 PSK 클라이언트를 생성합니다. 테스트에서 교체할 수 있습니다.
	Client dtls.Client
}

// DTLS 는 pion/dtls PSK 클라이언트 위의 보안 데이터그램 채널입니다. (ko)
// DTLS is a secure datagram channel on top of a pion/dtls PSK client. (en)
//
// 핸드셰이크는 첫 WritePacket 에서 수행되며, ReadPacket 은 핸드셰이크가 끝날 때까지 대기합니다.
// 따라서 첫 송신 전에는 네트워크로 아무것도 나가지 않습니다.
// 핸드셰이크가 실패하거나 피어가 세션을 끊으면 이후 Read/Write 는 ErrFailed 를 감싼 에러를 반환합니다.
// 호출자 버퍼보다 큰 레코드는 UDP 변형과 같이 잘려서 전달됩니다.
type DTLS struct {
	ep      Endpoint
	client  dtls.Client
	sess    dtls.Session
	timeout time.Duration
	logger  logging.Logger

	// scratch 는 ReadPacket 전용 수신 버퍼입니다. 호출자 버퍼보다 큰 레코드는 여기서 잘립니다.
	scratch []byte

	handshakeOnce sync.Once
	handshakeErr  error
	ready         chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

var _ Transport = (*DTLS)(nil)

// NewDTLS 는 DTLS 세션을 준비합니다. 핸드셰이크는 아직 수행하지 않습니다.
func NewDTLS(ep Endpoint, opts DTLSOptions) (*DTLS, error) {
	if ep.Addr == nil {
		return nil, fmt.Errorf("dtls transport: unresolved endpoint %s", ep)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With(logging.Fields{"transport": "dtls"})

	client := opts.Client
	if client == nil {
		client = dtls.NewPionClient(dtls.PionClientConfig{
			Addr:          ep.Addr,
			PSKIdentity:   opts.PSKIdentity,
			PSK:           opts.PSK,
			LoggerFactory: logging.PionLoggerFactory{Logger: logger},
		})
	}

	sess, err := client.Connect()
	if err != nil {
		return nil, fmt.Errorf("dtls transport: %w", err)
	}

	logger.Info("dtls session prepared", logging.Fields{
		"remote":     ep.String(),
		"session_id": sess.ID(),
	})

	return &DTLS{
		ep:      ep,
		client:  client,
		sess:    sess,
		timeout: opts.HandshakeTimeout,
		logger:  logger,
		scratch: make([]byte, dtls.MaxRecordPayload),
		ready:   make(chan struct{}),
		closed:  make(chan struct{}),
	}, nil
}

// handshake 는 최초 한 번만 핸드셰이크를 수행하고, 그 결과를 이후 호출에서도 반환합니다.
func (d *DTLS) handshake() error {
	d.handshakeOnce.Do(func() {
		defer close(d.ready)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-d.closed:
				cancel()
			case <-ctx.Done():
			}
		}()

		if _, err := dtls.PerformClientHandshake(ctx, d.sess, d.logger, d.timeout); err != nil {
			d.handshakeErr = fmt.Errorf("%w: %w", ErrFailed, err)
		}
	})
	return d.handshakeErr
}

func (d *DTLS) WritePacket(p []byte) error {
	select {
	case <-d.closed:
		return ErrClosed
	default:
	}
	if err := d.handshake(); err != nil {
		return d.mapErr(err)
	}
	if _, err := d.sess.Write(p); err != nil {
		return d.mapErr(err)
	}
	return nil
}

func (d *DTLS) ReadPacket(buf []byte) (int, error) {
	select {
	case <-d.ready:
	case <-d.closed:
		return 0, ErrClosed
	}
	if d.handshakeErr != nil {
		return 0, d.mapErr(d.handshakeErr)
	}
	n, err := d.sess.Read(d.scratch)
	if err != nil {
		return 0, d.mapErr(err)
	}
	return copy(buf, d.scratch[:n]), nil
}

func (d *DTLS) Endpoint() Endpoint { return d.ep }

func (d *DTLS) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		err = d.client.Close()
	})
	return err
}

// mapErr 는 Close 이후의 에러를 ErrClosed 로, 피어가 세션을 끊은 경우를 ErrFailed 로 통일합니다.
func (d *DTLS) mapErr(err error) error {
	select {
	case <-d.closed:
		return ErrClosed
	default:
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	if errors.Is(err, ErrFailed) {
		return err
	}
	if dtls.IsTerminated(err) {
		return fmt.Errorf("%w: session terminated by peer: %w", ErrFailed, err)
	}
	return err
}

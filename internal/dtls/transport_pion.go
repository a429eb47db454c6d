package dtls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	piondtls "github.com/pion/dtls/v3"
	pionlogging "github.com/pion/logging"
)

// PSKCipherSuites 는 PSK 전용 클라이언트가 제안하는 cipher suite 목록입니다.
// LwM2M 서버들이 흔히 요구하는 CCM_8 을 우선합니다.
var PSKCipherSuites = []piondtls.CipherSuiteID{
	piondtls.TLS_PSK_WITH_AES_128_CCM_8,
	piondtls.TLS_PSK_WITH_AES_128_CBC_SHA256,
}

// MaxRecordPayload 는 DTLS 레코드 하나가 담을 수 있는 최대 평문 크기(2^14)입니다.
// Session.Read 에는 이보다 작은 버퍼를 넘기지 않아야 레코드가 버려지지 않습니다.
const MaxRecordPayload = 1 << 14

// IsTerminated 는 err 가 세션이 더 이상 쓸 수 없는 상태임을 나타내는지 판단합니다. (ko)
// IsTerminated reports whether err means the session is gone for good. (en)
//
// 피어의 close_notify 이후 Read 는 io.EOF 를, 치명적 alert 이후 Read/Write 는
// *piondtls.FatalError(또는 InternalError)를 반환합니다.
func IsTerminated(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var (
		fatal    *piondtls.FatalError
		internal *piondtls.InternalError
	)
	return errors.As(err, &fatal) || errors.As(err, &internal)
}

// PionClientConfig 는 pion/dtls 기반 PSK 클라이언트 구성을 정의합니다. (ko)
// PionClientConfig describes a pion/dtls pre-shared-key client. (en)
type PionClientConfig struct {
	Addr          *net.UDPAddr
	PSKIdentity   []byte
	PSK           []byte
	LoggerFactory pionlogging.LoggerFactory
}

type pionClient struct {
	cfg PionClientConfig

	mu       sync.Mutex
	sessions []*pionSession
}

// NewPionClient 는 pion/dtls 기반 PSK 클라이언트를 생성합니다. (ko)
// NewPionClient creates a pion/dtls backed PSK client. (en)
func NewPionClient(cfg PionClientConfig) Client {
	return &pionClient{cfg: cfg}
}

// Connect 는 원격 주소로 DTLS 연결을 만듭니다. 핸드셰이크는 첫 Read/Write 또는
// HandshakeContext 호출 시점에 수행됩니다.
func (c *pionClient) Connect() (Session, error) {
	if c.cfg.Addr == nil {
		return nil, fmt.Errorf("dtls client: remote address is required")
	}
	if len(c.cfg.PSKIdentity) == 0 || len(c.cfg.PSK) == 0 {
		return nil, fmt.Errorf("dtls client: psk identity and key are required")
	}

	psk := append([]byte(nil), c.cfg.PSK...)
	conf := &piondtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return psk, nil
		},
		PSKIdentityHint: append([]byte(nil), c.cfg.PSKIdentity...),
		CipherSuites:    PSKCipherSuites,
		LoggerFactory:   c.cfg.LoggerFactory,
	}

	conn, err := piondtls.Dial("udp4", c.cfg.Addr, conf)
	if err != nil {
		return nil, fmt.Errorf("dtls dial %s: %w", c.cfg.Addr, err)
	}

	sess := &pionSession{conn: conn, id: uuid.NewString()}
	c.mu.Lock()
	c.sessions = append(c.sessions, sess)
	c.mu.Unlock()
	return sess, nil
}

// Close 는 이 클라이언트가 만든 모든 세션을 닫습니다.
func (c *pionClient) Close() error {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = nil
	c.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type pionSession struct {
	conn *piondtls.Conn
	id   string

	closeOnce sync.Once
	closeErr  error
}

func (s *pionSession) Read(p []byte) (int, error)  { return s.conn.Read(p) }
func (s *pionSession) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *pionSession) ID() string                  { return s.id }

func (s *pionSession) HandshakeContext(ctx context.Context) error {
	return s.conn.HandshakeContext(ctx)
}

func (s *pionSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

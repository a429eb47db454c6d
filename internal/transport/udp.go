package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"github.com/dalbodeule/coaphex/internal/logging"
)

// UDPOptions 는 UDP 변형의 선택적 소켓 설정입니다.
type UDPOptions struct {
	TTL    int // 0 이면 OS 기본값
	Logger logging.Logger
}

// UDP 는 임시 로컬 포트에 바인드된 비연결 IPv4 UDP 소켓입니다.
// 어떤 출발지에서 온 데이터그램이든 수신합니다.
type UDP struct {
	ep     Endpoint
	conn   *net.UDPConn
	pc     *ipv4.PacketConn
	logger logging.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ Transport = (*UDP)(nil)

// NewUDP 는 임시 포트에 소켓을 바인드합니다.
func NewUDP(ep Endpoint, opts UDPOptions) (*UDP, error) {
	if ep.Addr == nil {
		return nil, fmt.Errorf("udp transport: unresolved endpoint %s", ep)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("udp transport: bind: %w", err)
	}
	pc := ipv4.NewPacketConn(conn)
	if opts.TTL > 0 {
		if err := pc.SetTTL(opts.TTL); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("udp transport: set ttl %d: %w", opts.TTL, err)
		}
	}

	u := &UDP{
		ep:     ep,
		conn:   conn,
		pc:     pc,
		logger: logger.With(logging.Fields{"transport": "udp"}),
	}
	u.logger.Info("udp socket bound", logging.Fields{
		"local":  conn.LocalAddr().String(),
		"remote": ep.String(),
	})
	return u, nil
}

// LocalAddr 는 바인드된 로컬 주소를 반환합니다.
func (u *UDP) LocalAddr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr)
}

func (u *UDP) WritePacket(p []byte) error {
	if _, err := u.pc.WriteTo(p, nil, u.ep.Addr); err != nil {
		return mapClosed(err)
	}
	return nil
}

func (u *UDP) ReadPacket(buf []byte) (int, error) {
	n, _, src, err := u.pc.ReadFrom(buf)
	if err != nil {
		return 0, mapClosed(err)
	}
	u.logger.Debug("udp datagram received", logging.Fields{
		"from":  addrString(src),
		"bytes": n,
	})
	return n, nil
}

func (u *UDP) Endpoint() Endpoint { return u.ep }

func (u *UDP) Close() error {
	u.closeOnce.Do(func() {
		u.closeErr = u.pc.Close()
	})
	return u.closeErr
}

func mapClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

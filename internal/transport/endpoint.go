package transport

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint 는 원격 피어의 (host, port) 입니다. 시작 시 한 번 해석되고 이후 변경되지 않습니다.
type Endpoint struct {
	Host string
	Port int
	Addr *net.UDPAddr
}

// ResolveEndpoint 는 host:port 를 IPv4 UDP 주소로 해석합니다.
func ResolveEndpoint(host string, port int) (Endpoint, error) {
	if host == "" {
		return Endpoint{}, fmt.Errorf("resolve endpoint: empty host")
	}
	if port <= 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("resolve endpoint: port out of range: %d", port)
	}
	hp := net.JoinHostPort(host, strconv.Itoa(port))
	addr, err := net.ResolveUDPAddr("udp4", hp)
	if err != nil {
		return Endpoint{}, fmt.Errorf("resolve endpoint %s: %w", hp, err)
	}
	return Endpoint{Host: host, Port: port, Addr: addr}, nil
}

// ParsePort 는 CLI 인자로 받은 포트 문자열을 검증합니다.
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if p <= 0 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q: out of range", s)
	}
	return p, nil
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

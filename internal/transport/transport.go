// Package transport 는 COAPHEX 브리지가 사용하는 데이터그램 전송 계층입니다.
//
// 두 가지 변형이 있습니다.
//   - UDP: 임시 포트에 바인드된 비연결 IPv4 소켓
//   - DTLS: pion/dtls PSK 클라이언트 위의 보안 채널
//
// 두 변형 모두 하나의 송신자와 하나의 수신자가 동시에 사용해도 안전합니다.
package transport

import "errors"

var (
	// ErrClosed 는 Close 이후의 Read/Write 에서 반환됩니다.
	ErrClosed = errors.New("transport closed")

	// ErrFailed 는 전송 계층이 더 이상 사용할 수 없는 상태(예: DTLS 핸드셰이크 실패)임을 나타냅니다.
	ErrFailed = errors.New("transport failed")
)

// Transport 는 원격 Endpoint 와 패킷을 주고받는 핸들입니다. (ko)
// Transport is an open datagram handle bound to one remote Endpoint. (en)
type Transport interface {
	// WritePacket 은 p 를 하나의 패킷으로 원격 Endpoint 에 보냅니다.
	WritePacket(p []byte) error

	// ReadPacket 은 패킷 하나가 도착할 때까지 블록하고 buf 에 채운 바이트 수를 반환합니다.
	// buf 보다 큰 패킷은 잘릴 수 있습니다.
	ReadPacket(buf []byte) (int, error)

	Endpoint() Endpoint
	Close() error
}

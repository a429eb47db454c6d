package dtls

import (
	"context"
	"io"
)

// Session 은 DTLS 위의 데이터그램 채널을 추상화합니다.
// Read/Write 한 번이 애플리케이션 데이터그램 하나에 대응합니다.
type Session interface {
	io.ReadWriteCloser
	ID() string

	// HandshakeContext 는 아직 핸드셰이크가 끝나지 않았다면 수행합니다. 이미 끝났다면 즉시 반환합니다.
	HandshakeContext(ctx context.Context) error
}

// Client 는 단일 서버와의 DTLS 세션을 관리하는 추상 인터페이스입니다.
// 이 브리지는 클라이언트 전용이며 서버 측 Accept 는 제공하지 않습니다.
type Client interface {
	Connect() (Session, error)
	Close() error
}

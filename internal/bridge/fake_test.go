package bridge

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalbodeule/coaphex/internal/transport"
)

// fakeTransport 는 메모리 위에서 동작하는 transport.Transport 입니다.
type fakeTransport struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr func(p []byte) error

	inbound  chan []byte
	readErrs chan error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound:  make(chan []byte, 128),
		readErrs: make(chan error, 8),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) WritePacket(p []byte) error {
	select {
	case <-f.closed:
		return transport.ErrClosed
	default:
	}
	if f.writeErr != nil {
		if err := f.writeErr(p); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) ReadPacket(buf []byte) (int, error) {
	select {
	case p := <-f.inbound:
		return copy(buf, p), nil
	case err := <-f.readErrs:
		return 0, err
	case <-f.closed:
		return 0, transport.ErrClosed
	}
}

func (f *fakeTransport) Endpoint() transport.Endpoint {
	ep, _ := transport.ResolveEndpoint("127.0.0.1", 5683)
	return ep
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// lockedBuffer 는 동시 접근 가능한 출력 버퍼입니다.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) lines() []string {
	s := strings.TrimSuffix(b.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// waitFor 는 cond 가 참이 될 때까지 최대 2초간 폴링합니다.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

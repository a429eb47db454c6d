package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/dalbodeule/coaphex/internal/dtls"
)

// fakeSession 은 메모리 위에서 데이터그램 경계를 유지하는 dtls.Session 입니다.
type fakeSession struct {
	mu           sync.Mutex
	written      [][]byte
	inbound      chan []byte
	handshakes   int
	handshakeErr error
	readErr      error
	closed       chan struct{}
	closeOnce    sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{inbound: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeSession) ID() string { return "fake-session" }

func (f *fakeSession) HandshakeContext(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handshakes++
	return f.handshakeErr
}

func (f *fakeSession) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, bytes.Clone(p))
	return len(p), nil
}

func (f *fakeSession) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	select {
	case msg := <-f.inbound:
		return copy(p, msg), nil
	case <-f.closed:
		return 0, errors.New("use of closed dtls conn")
	}
}

func (f *fakeSession) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSession) snapshot() ([][]byte, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...), f.handshakes
}

type fakeClient struct {
	sess *fakeSession
}

func (c *fakeClient) Connect() (dtls.Session, error) { return c.sess, nil }
func (c *fakeClient) Close() error                   { return c.sess.Close() }

// recordingTransport 는 WritePacket 호출만 기록합니다.
type recordingTransport struct {
	mu     sync.Mutex
	writes [][]byte
}

func (r *recordingTransport) WritePacket(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, bytes.Clone(p))
	return nil
}
func (r *recordingTransport) ReadPacket(buf []byte) (int, error) { return 0, ErrClosed }
func (r *recordingTransport) Endpoint() Endpoint                 { return Endpoint{} }
func (r *recordingTransport) Close() error                       { return nil }

package cli

import (
	"bytes"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/dalbodeule/coaphex/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "COAPHEX_") {
			key, _, _ := strings.Cut(kv, "=")
			t.Setenv(key, "")
		}
	}
}

// captureInvocation 은 실제 브리지 대신 해석된 invocation 을 기록합니다.
func captureInvocation(t *testing.T) *invocation {
	t.Helper()
	got := &invocation{}
	prev := runBridge
	runBridge = func(_ *cobra.Command, inv *invocation) error {
		*got = *inv
		return nil
	}
	t.Cleanup(func() { runBridge = prev })
	return got
}

func execute(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetErr(io.Discard)
	cmd.SetOut(io.Discard)
	return cmd.Execute()
}

func TestUDPCommandArgs(t *testing.T) {
	clearEnv(t)
	inv := captureInvocation(t)

	err := execute(NewUDPCommand(), "--send-rate", "5", "--ttl", "8", "127.0.0.1", "5683", "java", "-jar", "client.jar")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if inv.variant != VariantUDP || inv.host != "127.0.0.1" || inv.port != 5683 {
		t.Errorf("unexpected invocation %+v", inv)
	}
	if want := []string{"java", "-jar", "client.jar"}; !reflect.DeepEqual(inv.child, want) {
		t.Errorf("child = %q, want %q", inv.child, want)
	}
	if inv.cfg.Transport.SendRate != 5 || inv.cfg.Transport.UDPTTL != 8 {
		t.Errorf("transport config = %+v", inv.cfg.Transport)
	}
}

func TestUDPCommandRejectsBadArgs(t *testing.T) {
	clearEnv(t)
	captureInvocation(t)

	if err := execute(NewUDPCommand(), "127.0.0.1"); err == nil {
		t.Error("expected error without port")
	}
	if err := execute(NewUDPCommand(), "127.0.0.1", "coap"); err == nil {
		t.Error("expected error for non-numeric port")
	}
	if err := execute(NewUDPCommand(), "127.0.0.1", "70000"); err == nil {
		t.Error("expected error for out of range port")
	}
}

func TestDTLSCommandPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("COAPHEX_PSK_IDENTITY", "Client_identity")
	t.Setenv("COAPHEX_PSK_KEY", "from-env")
	t.Setenv("COAPHEX_LOG_LEVEL", "warn")
	inv := captureInvocation(t)

	if err := execute(NewDTLSCommand(), "--psk-key", "hex:73656372657450534b", "coap.example.net"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if inv.port != 5684 {
		t.Errorf("port = %d, want 5684", inv.port)
	}
	if inv.child != nil {
		t.Errorf("child = %q, want none", inv.child)
	}
	if inv.cfg.DTLS.PSKIdentity != "Client_identity" {
		t.Errorf("identity = %q", inv.cfg.DTLS.PSKIdentity)
	}
	if key, _ := inv.cfg.DTLS.PSKKeyBytes(); string(key) != "secretPSK" {
		t.Errorf("key = %q, flag must override env", key)
	}
	if inv.cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", inv.cfg.Logging.Level)
	}

	if err := execute(NewDTLSCommand(), "--port", "15684", "host", "./client --debug"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if inv.port != 15684 {
		t.Errorf("port = %d, want 15684", inv.port)
	}
	if want := []string{"./client --debug"}; !reflect.DeepEqual(inv.child, want) {
		t.Errorf("child = %q, want %q", inv.child, want)
	}
}

func TestDTLSCommandRequiresPSK(t *testing.T) {
	clearEnv(t)
	captureInvocation(t)

	err := execute(NewDTLSCommand(), "coap.example.net")
	if err == nil || !strings.Contains(err.Error(), "psk_identity") {
		t.Fatalf("err = %v, want missing psk_identity", err)
	}
}

func TestPSKLogFieldsOmitSecret(t *testing.T) {
	f := pskLogFields(config.DTLSConfig{PSKIdentity: "Client_identity", PSKKey: "hex:73656372657450534b"})
	if f["psk_identity"] != "Client_identity" || f["psk_key_bytes"] != 9 {
		t.Fatalf("fields = %v", f)
	}
	for k, v := range f {
		if s, ok := v.(string); ok && strings.Contains(s, "secret") {
			t.Errorf("field %s leaks the key: %q", k, s)
		}
	}
}

func TestDTLSStartupLogOmitsPSK(t *testing.T) {
	clearEnv(t)

	stderr := &lockedBuffer{}
	cmd := NewDTLSCommand()
	cmd.SetArgs([]string{"--psk-identity", "Client_identity", "--psk-key", "secretPSK", "--port", "15684", "127.0.0.1"})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(io.Discard)
	cmd.SetErr(stderr)

	// 입력이 바로 끝나므로 핸드셰이크 없이 종료된다.
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	logs := stderr.String()
	if !strings.Contains(logs, `"psk_key_bytes":9`) {
		t.Errorf("startup log missing psk_key_bytes: %s", logs)
	}
	for _, part := range []string{"secretPSK", "secr", "tPSK"} {
		if strings.Contains(logs, part) {
			t.Errorf("log contains %q of the key", part)
		}
	}
}

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

func TestUDPBridgeEndToEnd(t *testing.T) {
	clearEnv(t)

	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer peer.Close()
	port := strconv.Itoa(peer.LocalAddr().(*net.UDPAddr).Port)

	pr, pw := io.Pipe()
	defer pw.Close()
	out := &lockedBuffer{}

	cmd := NewUDPCommand()
	cmd.SetArgs([]string{"127.0.0.1", port})
	cmd.SetIn(pr)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	if _, err := io.WriteString(pw, "starting client\nCOAPHEX:48656C6C6F\n"); err != nil {
		t.Fatalf("write input: %v", err)
	}

	_ = peer.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 64)
	n, from, err := peer.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(buf[:n]) != "Hello" {
		t.Fatalf("peer got %q, want Hello", buf[:n])
	}

	if _, err := peer.WriteToUDP([]byte{0xca, 0xfe}, from); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for out.String() != "COAPHEX:CAFE\n" {
		if time.Now().After(deadline) {
			t.Fatalf("stdout = %q, want COAPHEX:CAFE line", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}

	_ = pw.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("bridge did not exit on end of input")
	}
}

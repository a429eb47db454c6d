package hexline

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func TestEncodeUppercase(t *testing.T) {
	if got := Encode([]byte{0xca, 0xfe, 0x00, 0x0a}); got != "CAFE000A" {
		t.Fatalf("Encode = %q, want CAFE000A", got)
	}
	if got := Encode(nil); got != "" {
		t.Fatalf("Encode(nil) = %q, want empty", got)
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for n := 0; n <= 300; n++ {
		b := make([]byte, n)
		r.Read(b)

		s := Encode(b)
		if len(s) != 2*n {
			t.Fatalf("len(Encode) = %d, want %d", len(s), 2*n)
		}
		got, err := Decode(s)
		if err != nil {
			t.Fatalf("Decode(%q): %v", s, err)
		}
		if !bytes.Equal(got, b) {
			t.Fatalf("round trip mismatch for %x", b)
		}
	}
}

func TestEncodeOfDecodeIsUppercase(t *testing.T) {
	for _, s := range []string{"", "00", "ab", "aBcD", "0123456789abcdefABCDEF", "cafebabe"} {
		b, err := Decode(s)
		if err != nil {
			t.Fatalf("Decode(%q): %v", s, err)
		}
		if got := Encode(b); got != strings.ToUpper(s) {
			t.Errorf("Encode(Decode(%q)) = %q, want %q", s, got, strings.ToUpper(s))
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, s := range []string{"ZZ", "ABC", "0", "G0", "12 4", "xx11"} {
		if _, err := Decode(s); !errors.Is(err, ErrMalformedHex) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformedHex", s, err)
		}
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []byte
		ok      bool
		wantErr bool
	}{
		{name: "hello", line: "COAPHEX:48656C6C6F", want: []byte("Hello"), ok: true},
		{name: "lowercase", line: "COAPHEX:cafe", want: []byte{0xca, 0xfe}, ok: true},
		{name: "crlf", line: "COAPHEX:CAFE\r", want: []byte{0xca, 0xfe}, ok: true},
		{name: "empty payload", line: "COAPHEX:", want: []byte{}, ok: true},
		{name: "plain text", line: "hello world", ok: false},
		{name: "empty line", line: "", ok: false},
		{name: "prefix is case sensitive", line: "coaphex:CAFE", ok: false},
		{name: "non hex", line: "COAPHEX:ZZ", ok: true, wantErr: true},
		{name: "odd length", line: "COAPHEX:ABC", ok: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedHex) {
					t.Fatalf("err = %v, want ErrMalformedHex", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("payload = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestFormatLine(t *testing.T) {
	if got := FormatLine([]byte{0xca, 0xfe}); got != "COAPHEX:CAFE" {
		t.Fatalf("FormatLine = %q", got)
	}
}

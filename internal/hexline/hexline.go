// Package hexline 은 COAPHEX 텍스트 라인과 패킷 바이트 사이의 변환을 담당합니다.
//
// 한 줄은 "COAPHEX:" 접두어 뒤에 패킷 바이트를 대문자 16진수로 붙인 형태입니다.
//
//	COAPHEX:48656C6C6F   <->   []byte("Hello")
package hexline

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Prefix 는 전송 대상 라인을 식별하는 접두어입니다. 대소문자를 구분합니다.
const Prefix = "COAPHEX:"

// ErrMalformedHex 는 홀수 길이이거나 16진수가 아닌 문자가 포함된 페이로드를 나타냅니다. (ko)
// ErrMalformedHex reports an odd-length or non-hex payload. (en)
var ErrMalformedHex = errors.New("malformed hex payload")

// Encode returns the uppercase hex form of b, two characters per byte.
func Encode(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// Decode is the inverse of Encode. Both upper and lower case digits are accepted.
func Decode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHex, err)
	}
	return b, nil
}

// FormatLine 은 패킷을 출력용 한 줄(개행 제외)로 변환합니다.
func FormatLine(pkt []byte) string {
	return Prefix + Encode(pkt)
}

// ParseLine 은 입력 한 줄을 분류합니다.
//
//   - 접두어가 없으면 ok=false, err=nil (전송 대상 아님)
//   - 접두어 + 올바른 hex 이면 ok=true 와 디코딩된 페이로드
//   - 접두어 + 잘못된 hex 이면 ok=true 와 ErrMalformedHex 를 감싼 에러
//
// 줄 끝의 '\r' 은 무시합니다.
func ParseLine(line string) (payload []byte, ok bool, err error) {
	line = strings.TrimSuffix(line, "\r")
	rest, found := strings.CutPrefix(line, Prefix)
	if !found {
		return nil, false, nil
	}
	payload, err = Decode(rest)
	if err != nil {
		return nil, true, err
	}
	return payload, true, nil
}

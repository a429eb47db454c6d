package logging

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level 은 로그의 심각도 레벨을 나타냅니다.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) rank() int {
	switch l {
	case DebugLevel:
		return 0
	case InfoLevel:
		return 1
	case WarnLevel:
		return 2
	case ErrorLevel:
		return 3
	default:
		return 1
	}
}

// ParseLevel 은 "debug", "INFO" 같은 문자열을 Level 로 변환합니다. 알 수 없는 값은 info 입니다. (ko)
// ParseLevel converts a string to a Level, defaulting to info. (en)
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case DebugLevel:
		return DebugLevel
	case WarnLevel, "warning":
		return WarnLevel
	case ErrorLevel:
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Fields 는 구조적 로그의 key/value 필드를 표현합니다.
type Fields map[string]any

// Logger 는 진단 스트림용 구조적 로그 인터페이스입니다.
//
// - 모든 구현체는 단일 라인 JSON 을 stderr 로 출력합니다.
// - stdout 은 COAPHEX 라인 프로토콜 전용이므로 로그를 절대 쓰지 않습니다.
type Logger interface {
	// Debug 는 디버그 레벨 로그를 기록합니다.
	Debug(msg string, fields Fields)

	// Info 는 정보 레벨 로그를 기록합니다.
	Info(msg string, fields Fields)

	// Warn 는 경고 레벨 로그를 기록합니다.
	Warn(msg string, fields Fields)

	// Error 는 에러 레벨 로그를 기록합니다.
	Error(msg string, fields Fields)

	// With 는 추가 필드를 항상 포함하는 child logger 를 생성합니다.
	With(fields Fields) Logger
}

// Options 는 Logger 출력 대상과 레벨을 정의합니다. (ko)
// Options controls where the logger writes and which level it keeps. (en)
type Options struct {
	Level Level

	// File 이 비어 있지 않으면 stderr 와 함께 lumberjack 으로 회전되는 파일에도 기록합니다.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Output 은 테스트 등에서 stderr 대신 사용할 writer 입니다.
	Output io.Writer
}

type stdLogger struct {
	l      *log.Logger
	min    Level
	fields Fields
}

func (s *stdLogger) log(level Level, msg string, fields Fields) {
	if level.rank() < s.min.rank() {
		return
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"msg":   msg,
	}

	// 공통 필드 병합
	for k, v := range s.fields {
		entry[k] = v
	}
	// 호출 시 전달된 필드 병합(우선순위 높음)
	for k, v := range fields {
		entry[k] = v
	}

	b, err := json.Marshal(entry)
	if err != nil {
		// JSON 마샬 실패 시 fallback 으로 기본 포맷 사용
		s.l.Printf("level=%s msg=%s marshal_error=%v", level, msg, err)
		return
	}
	s.l.Println(string(b))
}

func (s *stdLogger) Debug(msg string, fields Fields) { s.log(DebugLevel, msg, fields) }
func (s *stdLogger) Info(msg string, fields Fields)  { s.log(InfoLevel, msg, fields) }
func (s *stdLogger) Warn(msg string, fields Fields)  { s.log(WarnLevel, msg, fields) }
func (s *stdLogger) Error(msg string, fields Fields) { s.log(ErrorLevel, msg, fields) }

func (s *stdLogger) With(fields Fields) Logger {
	merged := Fields{}
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &stdLogger{
		l:      s.l,
		min:    s.min,
		fields: merged,
	}
}

// New 는 단일 라인 JSON 로그를 stderr(및 선택적으로 회전 파일)로 출력하는 Logger 를 생성합니다.
// 프로세스마다 run_id 를 부여해 여러 브리지 인스턴스의 로그를 구분할 수 있습니다.
func New(component string, opts Options) Logger {
	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	if strings.TrimSpace(opts.File) != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}
	level := opts.Level
	if level == "" {
		level = InfoLevel
	}
	return &stdLogger{
		l:   log.New(out, "", 0), // 프리픽스/타임스탬프는 JSON 필드로만 사용
		min: level,
		fields: Fields{
			"component": component,
			"run_id":    uuid.NewString(),
		},
	}
}

// NewStdJSONLogger 는 설정 로드 전에 사용할 info 레벨 stderr Logger 를 생성합니다.
func NewStdJSONLogger(component string) Logger {
	return New(component, Options{Level: InfoLevel})
}

// Nop 은 아무것도 기록하지 않는 Logger 입니다. 테스트에서 주로 사용합니다.
func Nop() Logger {
	return &stdLogger{l: log.New(io.Discard, "", 0), min: ErrorLevel, fields: Fields{}}
}

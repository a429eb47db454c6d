package config

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDTLSPort 는 보안 CoAP(coaps) 표준 포트입니다.
const DefaultDTLSPort = 5684

// 변형별 기본 수신 버퍼 크기입니다. 버퍼보다 큰 데이터그램은 잘립니다.
const (
	DefaultUDPRecvBuffer  = 1024
	DefaultDTLSRecvBuffer = 1280
)

// LoggingConfig 는 진단 로그 설정을 담습니다.
type LoggingConfig struct {
	Level      string `yaml:"level"`        // 예: "debug", "info", "warn", "error"
	File       string `yaml:"file"`         // 비어 있으면 stderr 만 사용
	MaxSizeMB  int    `yaml:"max_size_mb"`  // lumberjack 회전 크기
	MaxBackups int    `yaml:"max_backups"`  // 보관할 이전 파일 수
	MaxAgeDays int    `yaml:"max_age_days"` // 보관 기간(일)
	Compress   bool   `yaml:"compress"`
}

// TransportConfig 는 UDP/DTLS 공통 전송 설정을 담습니다.
type TransportConfig struct {
	RecvBufferSize int     `yaml:"recv_buffer"` // 0 이면 변형별 기본값
	SendRate       float64 `yaml:"send_rate"`   // 초당 패킷 수, 0 이하면 제한 없음
	SendBurst      int64   `yaml:"send_burst"`  // 버스트 허용량, 0 이면 1
	UDPTTL         int     `yaml:"udp_ttl"`     // 0 이면 OS 기본값
}

// DTLSConfig 는 DTLS 변형 전용 설정을 담습니다.
// PSK 는 소스에 박아두지 않고 env/.env/설정 파일/CLI 인자로만 주입합니다.
type DTLSConfig struct {
	Port             int           `yaml:"port"`
	PSKIdentity      string        `yaml:"psk_identity"`
	PSKKey           string        `yaml:"psk_key"` // 평문 또는 "hex:" 접두어가 붙은 16진수
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// Config 는 브리지 프로세스 설정 전체입니다.
//
// 우선순위: CLI 인자 > 환경변수 > .env > 설정 파일(COAPHEX_CONFIG_FILE) > 기본값
type Config struct {
	Logging       LoggingConfig   `yaml:"logging"`
	Transport     TransportConfig `yaml:"transport"`
	DTLS          DTLSConfig      `yaml:"dtls"`
	MetricsListen string          `yaml:"metrics_listen"` // 예: ":9100", 비어 있으면 비활성화
}

// Default 는 기본값으로 채워진 Config 를 반환합니다.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		DTLS: DTLSConfig{
			Port:             DefaultDTLSPort,
			HandshakeTimeout: 30 * time.Second,
		},
	}
}

var (
	dotenvOnce sync.Once
	dotenvErr  error
)

// loadDotEnvOnce 는 현재 작업 디렉터리의 .env 파일을 한 번만 읽어서 os.Environ 에 주입합니다.
// - KEY=VALUE, export KEY=VALUE 형식을 지원
// - # 으로 시작하는 줄은 주석으로 간주합니다.
func loadDotEnvOnce() {
	dotenvOnce.Do(func() {
		fi, err := os.Stat(".env")
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// .env 가 없으면 조용히 무시
				return
			}
			dotenvErr = err
			return
		}
		if fi.IsDir() {
			return
		}

		f, err := os.Open(".env")
		if err != nil {
			dotenvErr = err
			return
		}
		defer f.Close()

		dotenvErr = applyDotEnv(bufio.NewScanner(f))
	})
}

func applyDotEnv(scanner *bufio.Scanner) error {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		// 양 끝의 작은/큰따옴표 제거
		val = strings.Trim(val, `"'`)

		if key != "" {
			// 이미 OS 환경변수에 설정된 값이 있는 경우 이를 우선시합니다.
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
	return scanner.Err()
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// envSetter 는 환경변수 파싱 에러를 모아 한 번에 보고합니다.
type envSetter struct {
	errs []error
}

func (e *envSetter) setString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (e *envSetter) setInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envSetter) setInt64(key string, dst *int64) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envSetter) setFloat(key string, dst *float64) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = f
}

func (e *envSetter) setDuration(key string, dst *time.Duration) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

// applyEnv 는 COAPHEX_* 환경변수로 cfg 를 덮어씁니다.
func applyEnv(cfg *Config) error {
	var e envSetter

	e.setString("COAPHEX_LOG_LEVEL", &cfg.Logging.Level)
	e.setString("COAPHEX_LOG_FILE", &cfg.Logging.File)
	e.setInt("COAPHEX_LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB)
	e.setInt("COAPHEX_LOG_MAX_BACKUPS", &cfg.Logging.MaxBackups)
	e.setInt("COAPHEX_LOG_MAX_AGE_DAYS", &cfg.Logging.MaxAgeDays)
	cfg.Logging.Compress = getEnvBool("COAPHEX_LOG_COMPRESS", cfg.Logging.Compress)

	e.setInt("COAPHEX_RECV_BUFFER", &cfg.Transport.RecvBufferSize)
	e.setFloat("COAPHEX_SEND_RATE", &cfg.Transport.SendRate)
	e.setInt64("COAPHEX_SEND_BURST", &cfg.Transport.SendBurst)
	e.setInt("COAPHEX_UDP_TTL", &cfg.Transport.UDPTTL)

	e.setInt("COAPHEX_DTLS_PORT", &cfg.DTLS.Port)
	e.setString("COAPHEX_PSK_IDENTITY", &cfg.DTLS.PSKIdentity)
	e.setString("COAPHEX_PSK_KEY", &cfg.DTLS.PSKKey)
	e.setDuration("COAPHEX_DTLS_HANDSHAKE_TIMEOUT", &cfg.DTLS.HandshakeTimeout)

	e.setString("COAPHEX_METRICS_LISTEN", &cfg.MetricsListen)

	return errors.Join(e.errs...)
}

// LoadFile 은 YAML 설정 파일을 읽어 cfg 위에 덮어씁니다. 파일에 없는 키는 기존 값을 유지합니다.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Load 는 .env 를 한 번 읽어 현재 환경변수를 보완한 뒤
// "환경변수 > .env > 설정 파일 > 기본값" 우선순위로 설정을 구성합니다.
// CLI 인자는 호출 측(cmd)에서 마지막으로 덮어씁니다.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom 은 Load 와 같지만 path 가 비어 있지 않으면 COAPHEX_CONFIG_FILE 대신 사용합니다.
func LoadFrom(path string) (*Config, error) {
	loadDotEnvOnce()
	if dotenvErr != nil {
		return nil, dotenvErr
	}

	cfg := Default()
	if path := strings.TrimSpace(FirstNonEmpty(path, os.Getenv("COAPHEX_CONFIG_FILE"))); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// RecvBufferOrDefault 는 설정된 수신 버퍼 크기, 없으면 def 를 반환합니다.
func (c *Config) RecvBufferOrDefault(def int) int {
	if c.Transport.RecvBufferSize > 0 {
		return c.Transport.RecvBufferSize
	}
	return def
}

// PSKKeyBytes 는 PSK 비밀값을 바이트로 변환합니다. (ko)
// PSKKeyBytes decodes the PSK secret; a "hex:" prefix selects hex encoding. (en)
func (c DTLSConfig) PSKKeyBytes() ([]byte, error) {
	if rest, ok := strings.CutPrefix(c.PSKKey, "hex:"); ok {
		b, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("psk_key: %w", err)
		}
		return b, nil
	}
	return []byte(c.PSKKey), nil
}

// Validate 는 DTLS 변형 실행에 필요한 필드를 검사하고, 빠진 항목을 모두 나열합니다.
func (c DTLSConfig) Validate() error {
	missing := []string{}
	if strings.TrimSpace(c.PSKIdentity) == "" {
		missing = append(missing, "psk_identity")
	}
	if c.PSKKey == "" {
		missing = append(missing, "psk_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("dtls config missing required fields: %s", strings.Join(missing, ", "))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("dtls port out of range: %d", c.Port)
	}
	key, err := c.PSKKeyBytes()
	if err != nil {
		return err
	}
	if len(key) == 0 {
		return fmt.Errorf("psk_key is empty")
	}
	return nil
}

// FirstNonEmpty 는 앞에서부터 처음으로 non-empty 인 문자열을 반환합니다.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

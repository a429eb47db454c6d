package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dalbodeule/coaphex/internal/logging"
)

// 브리지 메트릭들을 정의합니다. 메트릭 이름에는 coaphex_ 접두어를 붙입니다.
// 카운터는 패키지 전역이며, MustRegister 호출 전에도 안전하게 증가시킬 수 있습니다.

var (
	// 네트워크로 전송된 패킷 수.
	PacketsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coaphex_packets_sent_total",
			Help: "Total number of packets sent to the remote endpoint.",
		},
	)

	// 네트워크에서 수신되어 COAPHEX 라인으로 출력된 패킷 수.
	PacketsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coaphex_packets_received_total",
			Help: "Total number of packets received from the transport.",
		},
	)

	// 방향별 페이로드 바이트 수.
	BytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coaphex_bytes_total",
			Help: "Total payload bytes, labeled by direction.",
		},
		[]string{"direction"}, // in, out
	)

	// 입력 라인 분류별 카운터.
	LinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coaphex_lines_total",
			Help: "Total number of input lines, labeled by kind.",
		},
		[]string{"kind"}, // packet, ignored, malformed, oversized
	)

	// 전송 계층 에러 카운터.
	TransportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coaphex_transport_errors_total",
			Help: "Total number of transport errors, labeled by operation.",
		},
		[]string{"op"}, // send, receive, output
	)

	// DTLS 핸드셰이크 총 횟수 (성공/실패 라벨 포함).
	DTLSHandshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coaphex_dtls_handshakes_total",
			Help: "Total number of DTLS handshakes, labeled by result.",
		},
		[]string{"result"}, // success, failure
	)

	// DTLS 핸드셰이크 소요 시간 분포.
	DTLSHandshakeDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coaphex_dtls_handshake_duration_seconds",
			Help:    "Histogram of DTLS handshake latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// MustRegister 는 위에서 정의한 메트릭들을 전역 Prometheus 레지스트리에 등록합니다.
// 프로세스 시작 시 한 번만 호출해야 합니다.
func MustRegister() {
	prometheus.MustRegister(
		PacketsSentTotal,
		PacketsReceivedTotal,
		BytesTotal,
		LinesTotal,
		TransportErrorsTotal,
		DTLSHandshakesTotal,
		DTLSHandshakeDurationSeconds,
	)
}

// Serve 는 addr 에서 /metrics 엔드포인트를 제공하고 ctx 가 끝나면 종료합니다. (ko)
// Serve exposes /metrics on addr until ctx is done. (en)
func Serve(ctx context.Context, addr string, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", logging.Fields{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

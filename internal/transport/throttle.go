package transport

import (
	"github.com/juju/ratelimit"
)

// throttled 는 송신 패킷 수를 토큰 버킷으로 제한합니다. 패킷을 버리거나 합치지 않고 대기만 합니다.
type throttled struct {
	Transport
	bucket *ratelimit.Bucket
}

// Throttle 은 t 의 송신을 초당 packetsPerSecond 개로 제한합니다.
// packetsPerSecond 가 0 이하이면 t 를 그대로 반환합니다.
func Throttle(t Transport, packetsPerSecond float64, burst int64) Transport {
	if packetsPerSecond <= 0 {
		return t
	}
	if burst <= 0 {
		burst = 1
	}
	return &throttled{
		Transport: t,
		bucket:    ratelimit.NewBucketWithRate(packetsPerSecond, burst),
	}
}

func (t *throttled) WritePacket(p []byte) error {
	t.bucket.Wait(1)
	return t.Transport.WritePacket(p)
}

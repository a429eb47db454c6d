package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrOutput 는 출력 스트림(stdout 또는 자식 프로세스 stdin)에 더 이상 쓸 수 없음을 나타냅니다.
var ErrOutput = errors.New("output sink failed")

// Sink 는 한 줄씩 쓰고 즉시 flush 하는 출력 스트림입니다. (ko)
// Sink writes one line at a time and flushes immediately. (en)
type Sink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewSink 는 w 위에 Sink 를 만듭니다.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// WriteLine 은 text 뒤에 개행을 붙여 쓰고 flush 합니다. 동시 호출은 직렬화됩니다.
func (s *Sink) WriteLine(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.WriteString(text); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return nil
}

package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dalbodeule/coaphex/internal/hexline"
	"github.com/dalbodeule/coaphex/internal/logging"
	"github.com/dalbodeule/coaphex/internal/observability"
	"github.com/dalbodeule/coaphex/internal/transport"
)

// MaxLineLength 는 입력 한 줄의 최대 길이(바이트)입니다.
// 65535 바이트 데이터그램을 hex 로 인코딩한 줄(접두어와 CRLF 포함)까지 들어갑니다.
// 이보다 긴 줄은 기록 후 건너뜁니다.
const MaxLineLength = 2*65535 + len(hexline.Prefix) + 2

// LineReader 는 입력 스트림을 줄 단위로 읽어 COAPHEX 줄은 전송하고
// 나머지 줄은 진단 로그로 흘려보냅니다.
type LineReader struct {
	in     io.Reader
	sender *Sender
	logger logging.Logger
}

// NewLineReader 는 in 을 읽어 sender 로 보내는 LineReader 를 만듭니다.
func NewLineReader(in io.Reader, sender *Sender, logger logging.Logger) *LineReader {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LineReader{
		in:     in,
		sender: sender,
		logger: logger.With(logging.Fields{"component": "reader"}),
	}
}

// Run 은 입력이 끝날 때(EOF)까지 줄을 처리하고 nil 을 반환합니다.
//
// 잘못된 hex 줄, MaxLineLength 를 넘는 줄, 송신 실패는 기록 후 건너뜁니다.
// 입력 읽기 에러와 transport.ErrFailed 는 반환됩니다.
func (r *LineReader) Run(ctx context.Context) error {
	br := bufio.NewReaderSize(r.in, 64*1024)

	for {
		line, size, err := readLine(br, MaxLineLength)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}

		if size > MaxLineLength {
			observability.LinesTotal.WithLabelValues("oversized").Inc()
			r.logger.Warn("oversized input line skipped", logging.Fields{
				"bytes": size,
				"limit": MaxLineLength,
			})
			continue
		}

		payload, ok, err := hexline.ParseLine(line)
		switch {
		case !ok:
			observability.LinesTotal.WithLabelValues("ignored").Inc()
			r.logger.Info("child output", logging.Fields{"line": line})
		case err != nil:
			observability.LinesTotal.WithLabelValues("malformed").Inc()
			r.logger.Warn("malformed COAPHEX line skipped", logging.Fields{
				"error": err.Error(),
				"line":  line,
			})
		default:
			observability.LinesTotal.WithLabelValues("packet").Inc()
			if err := r.sender.Send(ctx, payload); err != nil {
				if errors.Is(err, transport.ErrFailed) {
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("packet send failed", logging.Fields{"error": err.Error()})
			}
		}
	}

	r.logger.Info("input closed", nil)
	return nil
}

// readLine 은 개행(\n 또는 \r\n)을 제외한 한 줄과 그 전체 길이를 반환합니다.
// 길이가 limit 를 넘으면 나머지는 읽어서 버리고 line 은 비워 둡니다.
// 개행 없이 끝나는 마지막 줄도 한 줄로 취급합니다.
func readLine(br *bufio.Reader, limit int) (line string, size int, err error) {
	var buf []byte
	for {
		frag, isPrefix, err := br.ReadLine()
		if err != nil {
			if err == io.EOF && size > 0 {
				break
			}
			return "", size, err
		}
		size += len(frag)
		if size <= limit {
			buf = append(buf, frag...)
		} else {
			buf = nil
		}
		if !isPrefix {
			break
		}
	}
	return string(buf), size, nil
}

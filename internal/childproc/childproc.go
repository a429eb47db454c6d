// Package childproc 는 브리지의 입출력을 자식 프로세스의 파이프에 연결합니다.
package childproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/dalbodeule/coaphex/internal/logging"
)

// waitDelay 는 ctx 취소 후 파이프가 닫힐 때까지 기다리는 최대 시간입니다.
const waitDelay = 2 * time.Second

// Process 는 실행 중인 자식 프로세스입니다. (ko)
// Process is a running child process wired to the bridge. (en)
//
// Stdout 은 브리지의 입력(LineReader)으로, Stdin 은 출력(Sink)으로 사용됩니다.
// stderr 는 이 프로세스의 stderr 로 그대로 전달됩니다.
type Process struct {
	Stdout io.Reader
	Stdin  io.Writer

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Start 는 argv 로 자식 프로세스를 실행합니다. ctx 가 취소되면 자식은 종료됩니다.
//
// argv 가 공백을 포함한 단일 인자이면 필드 단위로 나눕니다.
// 예: []string{"java -jar client.jar"} → java, -jar, client.jar
func Start(ctx context.Context, argv []string, logger logging.Logger) (*Process, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	argv = SplitCommand(argv)
	if len(argv) == 0 {
		return nil, errors.New("childproc: empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("childproc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("childproc: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("childproc: start %q: %w", argv[0], err)
	}

	log := logger.With(logging.Fields{"component": "childproc", "pid": cmd.Process.Pid})
	log.Info("child process started", logging.Fields{"argv": argv})

	return &Process{
		Stdout: stdout,
		Stdin:  stdin,
		cmd:    cmd,
		stdin:  stdin,
		logger: log,
	}, nil
}

// SplitCommand 는 공백을 포함한 단일 인자를 필드로 나눕니다. 그 외에는 argv 를 그대로 반환합니다.
func SplitCommand(argv []string) []string {
	if len(argv) == 1 && strings.ContainsAny(argv[0], " \t") {
		return strings.Fields(argv[0])
	}
	return argv
}

// Pid 는 자식 프로세스의 pid 입니다.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Close 는 자식의 stdin 을 닫고 종료될 때까지 기다립니다.
// Stdout 을 끝까지 읽은 뒤(EOF) 호출해야 합니다. 여러 번 호출해도 안전합니다.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		err := p.cmd.Wait()

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.logger.Info("child process exited", logging.Fields{"exit_code": 0})
		case errors.As(err, &exitErr):
			p.logger.Warn("child process exited", logging.Fields{"exit_code": exitErr.ExitCode()})
		default:
			p.logger.Error("child process wait failed", logging.Fields{"error": err.Error()})
		}
		p.closeErr = err
	})
	return p.closeErr
}

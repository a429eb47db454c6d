package logging

import (
	"fmt"

	pionlogging "github.com/pion/logging"
)

// PionLoggerFactory 는 pion/dtls 내부 로그를 브리지 Logger 로 보내기 위한 어댑터입니다. (ko)
// PionLoggerFactory routes pion/dtls internal logs through a Logger. (en)
//
// pion 의 trace 레벨은 debug 로 합쳐집니다.
type PionLoggerFactory struct {
	Logger Logger
}

var _ pionlogging.LoggerFactory = PionLoggerFactory{}

// NewLogger implements pionlogging.LoggerFactory.
func (f PionLoggerFactory) NewLogger(scope string) pionlogging.LeveledLogger {
	l := f.Logger
	if l == nil {
		l = Nop()
	}
	return &pionLogger{l: l.With(Fields{"pion_scope": scope})}
}

type pionLogger struct {
	l Logger
}

func (p *pionLogger) Trace(msg string) { p.l.Debug(msg, nil) }
func (p *pionLogger) Tracef(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...), nil)
}
func (p *pionLogger) Debug(msg string) { p.l.Debug(msg, nil) }
func (p *pionLogger) Debugf(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...), nil)
}
func (p *pionLogger) Info(msg string) { p.l.Info(msg, nil) }
func (p *pionLogger) Infof(format string, args ...interface{}) {
	p.l.Info(fmt.Sprintf(format, args...), nil)
}
func (p *pionLogger) Warn(msg string) { p.l.Warn(msg, nil) }
func (p *pionLogger) Warnf(format string, args ...interface{}) {
	p.l.Warn(fmt.Sprintf(format, args...), nil)
}
func (p *pionLogger) Error(msg string) { p.l.Error(msg, nil) }
func (p *pionLogger) Errorf(format string, args ...interface{}) {
	p.l.Error(fmt.Sprintf(format, args...), nil)
}

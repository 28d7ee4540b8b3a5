package mq

import (
	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// NewLogger 把 watermill 的日志写入 zerolog，附带 component=mq.
func NewLogger(l *zerolog.Logger) watermill.LoggerAdapter {
	return zlAdapter{l: l.With().Str("component", "mq").Logger()}
}

type zlAdapter struct {
	l zerolog.Logger
}

// emit 级别未启用时 ev 为 nil，Fields 与 Msg 都是空操作.
func emit(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	ev.Fields(map[string]any(fields)).Msg(msg)
}

func (a zlAdapter) Error(msg string, err error, fields watermill.LogFields) {
	emit(a.l.Error().Err(err), msg, fields)
}

func (a zlAdapter) Info(msg string, fields watermill.LogFields) { emit(a.l.Info(), msg, fields) }

func (a zlAdapter) Debug(msg string, fields watermill.LogFields) { emit(a.l.Debug(), msg, fields) }

func (a zlAdapter) Trace(msg string, fields watermill.LogFields) { emit(a.l.Trace(), msg, fields) }

func (a zlAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zlAdapter{l: a.l.With().Fields(map[string]any(fields)).Logger()}
}

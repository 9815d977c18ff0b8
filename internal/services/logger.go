package services

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ServiceIdentifier interface {
	ID() string
}

// ServiceLogger tags every event with the owning service id.
type ServiceLogger struct {
	logger zerolog.Logger
}

func NewServiceLogger(svc ServiceIdentifier) *ServiceLogger {
	return newServiceLogger(log.Logger, svc)
}

func newServiceLogger(base zerolog.Logger, svc ServiceIdentifier) *ServiceLogger {
	return &ServiceLogger{logger: base.With().Str("service", svc.ID()).Logger()}
}

// With returns a child logger that also carries key=value.
func (l *ServiceLogger) With(key, value string) *ServiceLogger {
	return &ServiceLogger{logger: l.logger.With().Str(key, value).Logger()}
}

// Degraded is a warning carrying err, for calls that fall back instead of failing.
func (l *ServiceLogger) Degraded(err error) *zerolog.Event {
	return l.logger.Warn().Err(err)
}

func (l *ServiceLogger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *ServiceLogger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *ServiceLogger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

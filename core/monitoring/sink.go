package monitoring

import (
	"fuzzctl/entities"
	"fuzzctl/infra/utils/logger"
)

// LogSink - печатает события в лог, вместо ui
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) LogSink {
	if log == nil {
		log = logger.Default()
	}
	return LogSink{log: log}
}

func (s LogSink) Flush(events []entities.Event) error {
	for _, e := range events {
		switch e.Kind {
		case entities.EventCrash, entities.EventConnectionLost, entities.EventRejected, entities.EventConnectFailed:
			s.log.Warnf("%v", e)
		case entities.EventNoCrash:
			s.log.Debugf("%v", e)
		default:
			s.log.Infof("%v", e)
		}
	}
	return nil
}

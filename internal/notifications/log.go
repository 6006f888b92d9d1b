package notifications

import (
	"github.com/ducminhle1904/intraday-risk-bot/internal/logger"
)

// LogNotifier writes alerts to the bot log; used when no chat is configured
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) SendAlert(level, message string) error {
	switch level {
	case LevelError:
		n.logger.Error("ALERT: %s", message)
	case LevelWarning:
		n.logger.Warning("ALERT: %s", message)
	default:
		n.logger.Info("ALERT: %s", message)
	}
	return nil
}

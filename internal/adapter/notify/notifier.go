package notify

import (
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/port"
)

// LogNotifier stands in for the client toast surface: notifications are
// emitted as structured log lines at a level matching their kind.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(kind port.NotifyKind, message string) {
	field := zap.String("kind", string(kind))
	switch kind {
	case port.NotifyError:
		n.logger.Error(message, field)
	case port.NotifyWarning:
		n.logger.Warn(message, field)
	default:
		n.logger.Info(message, field)
	}
}

package port

type NotifyKind string

const (
	NotifySuccess NotifyKind = "success"
	NotifyWarning NotifyKind = "warning"
	NotifyError   NotifyKind = "error"
)

// Notifier is the user-facing toast collaborator. Fire-and-forget: the engine
// never waits on or reacts to notification delivery.
type Notifier interface {
	Notify(kind NotifyKind, message string)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(NotifyKind, string) {}

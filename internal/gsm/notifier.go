package gsm

// Level classifies a user-facing notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Notification is a best-effort message for whoever drives the engine.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier receives notifications. Implementations must not block for long;
// nothing in the engine depends on delivery.
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}

// Notify sends a notification through n, doing nothing when n is nil.
func Notify(n Notifier, level Level, title, message string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Level: level, Title: title, Message: message})
}

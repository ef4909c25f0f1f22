package panel

// Notifier delivers user-facing notices for panel events. Backend error
// text is passed through verbatim, never rewritten.
type Notifier interface {
	Info(panel, message string)
	Error(panel, message string)
}

type NopNotifier struct{}

func (NopNotifier) Info(panel, message string)  {}
func (NopNotifier) Error(panel, message string) {}

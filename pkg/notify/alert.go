package notify

// AlertLevel is the severity of an ops alert.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

// Alert is an operator-facing message, posted to Slack.
type Alert struct {
	Level  AlertLevel
	Title  string
	Text   string
	Fields map[string]string
}

package notify

import (
	"context"
	"log/slog"
	"sort"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/webhook"
)

var alertColors = map[AlertLevel]string{
	AlertInfo:    "#2563eb",
	AlertWarning: "#f59e0b",
	AlertError:   "#dc2626",
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

// SlackAlerter posts alerts to a Slack incoming webhook. With no URL
// configured every alert is skipped.
type SlackAlerter struct {
	url    string
	sender *webhook.Sender
	logger *slog.Logger
}

// NewSlackAlerter creates a SlackAlerter. sender defaults to
// webhook.NewSender().
func NewSlackAlerter(url string, sender *webhook.Sender, log *slog.Logger) *SlackAlerter {
	if sender == nil {
		sender = webhook.NewSender()
	}
	if log == nil {
		log = slog.Default()
	}
	return &SlackAlerter{url: url, sender: sender, logger: log}
}

// Alert posts a.
func (s *SlackAlerter) Alert(ctx context.Context, a Alert) error {
	if s.url == "" {
		s.logger.DebugContext(ctx, "slack alert skipped, no webhook configured", slog.String("title", a.Title))
		return nil
	}
	if err := s.sender.Send(ctx, s.url, slackPayload(a)); err != nil {
		s.logger.ErrorContext(ctx, "slack alert failed", slog.String("title", a.Title), logger.Error(err))
		return err
	}
	return nil
}

func slackPayload(a Alert) slackMessage {
	level := a.Level
	if _, ok := alertColors[level]; !ok {
		level = AlertInfo
	}
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	att := slackAttachment{Color: alertColors[level], Title: a.Title, Text: a.Text}
	for _, k := range keys {
		att.Fields = append(att.Fields, slackField{Title: k, Value: a.Fields[k], Short: true})
	}
	return slackMessage{
		Text:        "[" + string(level) + "] " + a.Title,
		Attachments: []slackAttachment{att},
	}
}

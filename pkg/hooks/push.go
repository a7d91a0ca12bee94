package hooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrEmptyPayload is returned by Notify for a push without data.
var ErrEmptyPayload = errors.New("push payload is empty")

// DefaultVibrate is the vibration pattern of every notification.
var DefaultVibrate = []int{100, 50, 100}

// NotifierConfig holds the fixed parts of a notification.
type NotifierConfig struct {
	Title      string
	Icon       string
	Badge      string
	PrimaryKey string
}

// DefaultNotifierConfig returns the site's notification defaults.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		Title:      "OurCreativity",
		Icon:       "/lovable-uploads/c861a7c0-5ec9-4bac-83ea-319c40fcb001.png",
		Badge:      "/lovable-uploads/c861a7c0-5ec9-4bac-83ea-319c40fcb001.png",
		PrimaryKey: "2",
	}
}

// NotificationData is attached to every notification.
type NotificationData struct {
	// DateOfArrival is in Unix milliseconds.
	DateOfArrival int64  `json:"date_of_arrival"`
	PrimaryKey    string `json:"primary_key"`
}

// Notification is what a Displayer shows.
type Notification struct {
	Title   string           `json:"title"`
	Body    string           `json:"body"`
	Icon    string           `json:"icon,omitempty"`
	Badge   string           `json:"badge,omitempty"`
	Vibrate []int            `json:"vibrate"`
	Data    NotificationData `json:"data"`
}

// Displayer shows a notification.
type Displayer interface {
	Display(ctx context.Context, n *Notification) error
}

// LogDisplayer writes notifications to the log.
type LogDisplayer struct {
	logger zerolog.Logger
}

// NewLogDisplayer creates a log-only displayer.
func NewLogDisplayer(logger zerolog.Logger) *LogDisplayer {
	return &LogDisplayer{logger: logger}
}

// Display implements Displayer.
func (d *LogDisplayer) Display(_ context.Context, n *Notification) error {
	d.logger.Info().
		Str("title", n.Title).
		Str("body", n.Body).
		Msg("Notification")
	return nil
}

// Notifier turns push payloads into notifications.
type Notifier struct {
	cfg       NotifierConfig
	displayer Displayer
	now       func() time.Time
}

// NewNotifier creates a notifier.
func NewNotifier(cfg NotifierConfig, displayer Displayer) *Notifier {
	return &Notifier{cfg: cfg, displayer: displayer, now: time.Now}
}

// Notify displays payload as the body of a notification.
func (n *Notifier) Notify(ctx context.Context, payload []byte) (*Notification, error) {
	if len(payload) == 0 {
		notificationsTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyPayload
	}

	notification := &Notification{
		Title:   n.cfg.Title,
		Body:    string(payload),
		Icon:    n.cfg.Icon,
		Badge:   n.cfg.Badge,
		Vibrate: append([]int(nil), DefaultVibrate...),
		Data: NotificationData{
			DateOfArrival: n.now().UnixMilli(),
			PrimaryKey:    n.cfg.PrimaryKey,
		},
	}

	if err := n.displayer.Display(ctx, notification); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("display notification: %w", err)
	}
	notificationsTotal.WithLabelValues("displayed").Inc()
	return notification, nil
}

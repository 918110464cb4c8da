// Package notification sends shoutrrr alerts for frames with PPE issues.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/logger"
)

// DefaultTimeout bounds one delivery to all configured services.
const DefaultTimeout = 10 * time.Second

// Notifier delivers an alert.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// ShoutrrrNotifier sends through every configured shoutrrr URL.
type ShoutrrrNotifier struct {
	urls   []string
	sender *router.ServiceRouter
	mu     sync.Mutex
}

// New returns a notifier for the configured URLs, or nil when alerts are
// disabled.
func New(settings *conf.Settings) (Notifier, error) {
	if !settings.Notification.Enabled {
		return nil, nil
	}
	n, err := NewShoutrrrNotifier(settings.Notification.URLs, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// NewShoutrrrNotifier validates urls by building the sender.
func NewShoutrrrNotifier(urls []string, timeout time.Duration) (*ShoutrrrNotifier, error) {
	if len(urls) == 0 {
		return nil, errors.ValidationError("at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid notification URL: %s", errors.ScrubMessage(err.Error()))).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrNotifier{urls: slices.Clone(urls), sender: sender}, nil
}

// Send delivers the alert and returns the first failure. ctx is not
// propagated; the router applies its own timeout.
func (n *ShoutrrrNotifier) Send(_ context.Context, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			return errors.New(fmt.Errorf("notification failed: %s", errors.ScrubMessage(err.Error()))).
				Component("notification").
				Category(errors.CategoryNotification).
				Context("services", len(n.urls)).
				Build()
		}
	}
	GetLogger().Debug("alert sent", logger.Int("services", len(n.urls)))
	return nil
}

// ShouldAlert reports whether a frame warrants an alert.
func ShouldAlert(s compliance.Snapshot, minFlags int) bool {
	return s.State == compliance.StateRisk && s.NonComplianceFlags >= max(1, minFlags)
}

// FormatAlert builds the alert title and body for a risky frame.
func FormatAlert(node, inspectionID string, source compliance.Source, s compliance.Snapshot) (title, message string) {
	if node == "" {
		node = "ppe-go"
	}
	title = fmt.Sprintf("PPE alert on %s: %d issue(s)", node, s.NonComplianceFlags)

	var b strings.Builder
	b.WriteString(s.StatusMessage(source))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Workers: %d, compliance score: %d%%\n", s.WorkerCount, s.ComplianceScore)
	for _, line := range s.Advice(source) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if inspectionID != "" {
		fmt.Fprintf(&b, "Inspection: %s", inspectionID)
	}
	return title, strings.TrimRight(b.String(), "\n")
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the notification package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("notification")
	})
	return serviceLogger
}

// Package notifications handles system notifications and alerts
package notifications

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/promille/internal/models"
)

// Alert type constants
const (
	alertAbsoluteLimit = models.StatusAbsoluteLimit
	alertOverLimit     = models.StatusOverLimit
	alertSober         = models.StatusSober
)

// Notifier sends a desktop notification
type Notifier func(title, message, icon string) error

// Manager handles BAC alerts and notifications
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	wasOverLimit  bool
	notify        Notifier
	now           func() time.Time
	mu            sync.Mutex
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings) *Manager {
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		notify:        beeep.Notify,
		now:           time.Now,
	}
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// SetNotifier replaces the desktop notifier
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = n
}

// CheckAndNotify checks the highest current BAC across models and sends a notification if needed
func (m *Manager) CheckAndNotify(results models.ResultMap) error {
	if len(results) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	model, bac := results.MaxCurrentBAC()
	status := m.settings.GetBACStatus(bac)

	alertType := m.shouldAlert(status)
	if status == alertOverLimit || status == alertAbsoluteLimit {
		m.wasOverLimit = true
	}
	if alertType == "" {
		return nil
	}

	// Check if we should repeat the alert
	if lastTime, ok := m.lastAlertTime[alertType]; ok {
		if m.settings.RepeatAlertMinutes > 0 {
			repeatDuration := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
			if m.now().Sub(lastTime) < repeatDuration {
				return nil
			}
		} else {
			// No repeat, only alert once per status change
			return nil
		}
	}

	title, message := m.formatNotification(model, bac, results[model], alertType)
	if err := m.notify(title, message, ""); err != nil {
		return err
	}

	m.lastAlertTime[alertType] = m.now()
	if alertType == alertSober {
		// next episode starts fresh
		m.wasOverLimit = false
		delete(m.lastAlertTime, alertOverLimit)
		delete(m.lastAlertTime, alertAbsoluteLimit)
	}
	return nil
}

// shouldAlert determines if an alert should be sent
func (m *Manager) shouldAlert(status string) string {
	switch status {
	case alertAbsoluteLimit:
		if m.settings.EnableAbsoluteLimitAlert {
			return alertAbsoluteLimit
		}
	case alertOverLimit:
		if m.settings.EnableOverLimitAlert {
			return alertOverLimit
		}
	case alertSober:
		// only after the subject was over the limit
		if m.settings.EnableSoberAlert && m.wasOverLimit {
			return alertSober
		}
	}
	return ""
}

// formatNotification creates the notification title and message
func (m *Manager) formatNotification(model models.ModelID, bac float64, res *models.ModelResult, alertType string) (string, string) {
	var title, message string
	valueStr := fmt.Sprintf("%.2f ‰", bac)

	switch alertType {
	case alertAbsoluteLimit:
		title = "⚠️ ABSOLUTE LIMIT EXCEEDED"
		message = fmt.Sprintf("Estimated BAC is %s (%s), above %.1f ‰", valueStr, model, m.settings.AbsoluteLimit)
	case alertOverLimit:
		title = "🍺 Over the Legal Limit"
		message = fmt.Sprintf("Estimated BAC is %s (%s), above %.1f ‰", valueStr, model, m.settings.LegalLimit)
	case alertSober:
		title = "✅ Sober Again"
		message = fmt.Sprintf("Estimated BAC is %s (%s)", valueStr, model)
	}

	if res != nil && res.TimeTo05 != nil && alertType != alertSober {
		message += fmt.Sprintf(", below 0.5 ‰ at %s", res.TimeTo05.Local().Format("15:04"))
	}

	return title, message
}

// ClearAlertState clears the alert state for a specific type or all types
func (m *Manager) ClearAlertState(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alertType == "" {
		m.lastAlertTime = make(map[string]time.Time)
		m.wasOverLimit = false
	} else {
		delete(m.lastAlertTime, alertType)
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify("Promille", "Test notification - alerts are working!", "")
}

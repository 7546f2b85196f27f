// Package notifier publishes plan progress as desktop notifications
package notifier

import (
	"fmt"
	"runtime"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/gantry/gantry/pkg/logger"
)

// PlanNotifier sends desktop notifications for plan lifecycle events
type PlanNotifier struct {
	enabled      bool
	successSound string
	failureSound string
	logger       logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled      bool
	SuccessSound string
	FailureSound string
}

// New creates a new plan notifier
func New(config Config, log logger.Logger) *PlanNotifier {
	return &PlanNotifier{
		enabled:      config.Enabled,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		logger:       log,
	}
}

// NotifyPlanStart notifies that a plan has started executing
func (n *PlanNotifier) NotifyPlanStart(plan string) {
	if !n.enabled {
		return
	}

	title := "🏗 Gantry"
	message := fmt.Sprintf("Executing plan %s...", plan)

	n.sendNotification(title, message, "")
}

// NotifyPlanSuccess notifies that a plan completed successfully
func (n *PlanNotifier) NotifyPlanSuccess(plan string, duration time.Duration) {
	if !n.enabled {
		return
	}

	title := "✅ Plan Succeeded"
	message := fmt.Sprintf("%s finished in %s", plan, formatDuration(duration))

	n.sendNotification(title, message, n.successSound)
}

// NotifyPlanFailure notifies that a plan failed
func (n *PlanNotifier) NotifyPlanFailure(plan string, err error) {
	if !n.enabled {
		return
	}

	title := "❌ Plan Failed"
	message := fmt.Sprintf("%s: %v", plan, err)

	n.sendNotification(title, message, n.failureSound)
}

// NotifyNodeFailure notifies that a single node failed while the plan
// continues with the remaining work
func (n *PlanNotifier) NotifyNodeFailure(node string, err error) {
	if !n.enabled {
		return
	}

	title := "⚠️ Node Failed"
	message := fmt.Sprintf("%s: %v", node, err)

	n.sendNotification(title, message, n.failureSound)
}

// Private methods

func (n *PlanNotifier) sendNotification(title, message, soundName string) {
	switch runtime.GOOS {
	case "darwin":
		n.sendMacNotification(title, message, soundName)
	case "linux", "windows":
		n.sendDesktopNotification(title, message)
	default:
		// Fallback to console
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
}

func (n *PlanNotifier) sendMacNotification(title, message, soundName string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}

	// Play sound if specified
	if soundName != "" {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func (n *PlanNotifier) sendDesktopNotification(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

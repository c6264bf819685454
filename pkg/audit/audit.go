// Package audit emits one structured key=value line per lifecycle and runtime
// transition on a dedicated channel. Calls are fire-and-forget: nothing here
// may affect runtime correctness, and the line format is stable for
// downstream log parsers.
package audit

import (
	"fmt"
	"log/slog"
	"time"
)

type Trail interface {
	OnDeploy(deploymentID, name, processKey string)
	OnUndeploy(deploymentID, name string)
	OnExecute(instanceID, processKey, activityID, activityName, activityType string)
	OnProcessLifecycle(eventType, instanceID, processKey string, duration *time.Duration)
	OnVariableWritten(executionID, name string, value any)
	OnTimerFired(timerID, instanceID, processKey, nodeID string)
}

// Logger writes audit lines through a dedicated slog channel.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger.With("module", "audit-trail")}
}

func (l *Logger) OnDeploy(deploymentID, name, processKey string) {
	l.logger.Info(fmt.Sprintf("event=deploy_workflow, deployment=%s, deployment_name=%s, process_key=%s",
		deploymentID, name, processKey))
}

func (l *Logger) OnUndeploy(deploymentID, name string) {
	l.logger.Info(fmt.Sprintf("event=undeploy_workflow, deployment=%s, deployment_name=%s",
		deploymentID, name))
}

func (l *Logger) OnExecute(instanceID, processKey, activityID, activityName, activityType string) {
	l.logger.Info(fmt.Sprintf("event=execute_activity, process=%s, process_key=%s, activity=%s, activity_name=%s, activity_type=%s",
		instanceID, processKey, activityID, activityName, activityType))
}

func (l *Logger) OnProcessLifecycle(eventType, instanceID, processKey string, duration *time.Duration) {
	if duration == nil {
		l.logger.Info(fmt.Sprintf("event=%s_process, process=%s, process_key=%s",
			eventType, instanceID, processKey))

		return
	}

	l.logger.Info(fmt.Sprintf("event=%s_process, process=%s, process_key=%s, duration=%d",
		eventType, instanceID, processKey, duration.Milliseconds()))
}

func (l *Logger) OnVariableWritten(executionID, name string, value any) {
	l.logger.Info(fmt.Sprintf("event=write_variable, execution=%s, name=%s, value=%v",
		executionID, name, value))
}

func (l *Logger) OnTimerFired(timerID, instanceID, processKey, nodeID string) {
	l.logger.Info(fmt.Sprintf("event=fire_timer, timer=%s, process=%s, process_key=%s, activity=%s",
		timerID, instanceID, processKey, nodeID))
}

// Nop discards every audit event.
type Nop struct{}

func (Nop) OnDeploy(string, string, string)                           {}
func (Nop) OnUndeploy(string, string)                                 {}
func (Nop) OnExecute(string, string, string, string, string)          {}
func (Nop) OnProcessLifecycle(string, string, string, *time.Duration) {}
func (Nop) OnVariableWritten(string, string, any)                     {}
func (Nop) OnTimerFired(string, string, string, string)               {}

// Package progress defines the pluggable progress-reporting interface the
// job runners report through, per spec.md §4.6 "Report step start/complete
// events to the pluggable progress reporter".
//
// Grounded verbatim in shape on the teacher's packages/core/progress/
// reporter.go (Reporter interface + NoOp default), retargeted from
// workflow-prepare/act-run events to job/step execution events.
package progress

import "time"

// Reporter receives execution events from the job runners and the
// container manager's image-pull path. A CLI implements this with
// terminal output; a future API surface could implement it with
// webhooks/SSE. External code owns rendering; the core only calls these
// methods at well-defined points.
type Reporter interface {
	OnJobStart(jobName string)
	OnStepStart(jobName, stepName string)
	OnStepOutput(jobName, stepName, line string)
	OnStepComplete(jobName, stepName string, success bool, duration time.Duration)
	OnJobComplete(jobName string, success bool, duration time.Duration)
	OnPullProgress(image, line string)
	OnError(err error)
}

// NoOp is a Reporter that does nothing. Use as the default when no
// reporting is needed.
type NoOp struct{}

func (NoOp) OnJobStart(jobName string)                                            {}
func (NoOp) OnStepStart(jobName, stepName string)                                 {}
func (NoOp) OnStepOutput(jobName, stepName, line string)                          {}
func (NoOp) OnStepComplete(jobName, stepName string, success bool, _ time.Duration) {}
func (NoOp) OnJobComplete(jobName string, success bool, _ time.Duration)          {}
func (NoOp) OnPullProgress(image, line string)                                    {}
func (NoOp) OnError(err error)                                                    {}

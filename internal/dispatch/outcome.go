package dispatch

import "fmt"

// Status is the top-level result of a dispatch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Reason qualifies a failure.
type Reason string

const (
	ReasonExit        Reason = "exit"        // backend exited non-zero
	ReasonTimeout     Reason = "timeout"     // backend exceeded the configured timeout and was killed
	ReasonCanceled    Reason = "canceled"    // caller went away
	ReasonUnavailable Reason = "unavailable" // backend could not be started
	ReasonScratch     Reason = "scratch"     // scratch document could not be written
	ReasonEncode      Reason = "encode"
	ReasonInvalid     Reason = "invalid"
)

// Outcome is what a caller learns from a dispatch. A failed outcome means the
// slice must be assumed not deployed (or not deleted).
type Outcome struct {
	Status   Status `json:"status"`
	Reason   Reason `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// Success returns a successful outcome carrying the backend output.
func Success(detail string) Outcome {
	return Outcome{Status: StatusSuccess, Detail: detail}
}

// Failure returns a failed outcome.
func Failure(reason Reason, detail string) Outcome {
	return Outcome{Status: StatusFailure, Reason: reason, Detail: detail}
}

// OK reports whether the backend accepted the request.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

func (o Outcome) String() string {
	if o.OK() {
		return string(StatusSuccess)
	}
	return fmt.Sprintf("%s (%s): %s", o.Status, o.Reason, o.Detail)
}

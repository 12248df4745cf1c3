package webhook

import "fmt"

/* Outcome represents the result of delivering a work item
 * Success, Gone and ExhaustedFailure are terminal; RetryScheduled means the
 * item moved on to the next retry stage
 */
type Outcome int

const (
	Success Outcome = iota + 1
	Gone
	RetryScheduled
	ExhaustedFailure
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Gone:
		return "gone"
	case RetryScheduled:
		return "retry_scheduled"
	case ExhaustedFailure:
		return "exhausted_failure"
	default:
		return "unknown"
	}
}

// NewOutcome creates an Outcome from a string
func NewOutcome(str string) Outcome {
	switch str {
	case "success":
		return Success
	case "gone":
		return Gone
	case "retry_scheduled":
		return RetryScheduled
	case "exhausted_failure":
		return ExhaustedFailure
	default:
		return 0
	}
}

// Validate checks if the outcome is valid
func (o Outcome) Validate() error {
	if o < Success || o > ExhaustedFailure {
		return fmt.Errorf("invalid outcome: %d", o)
	}
	return nil
}

// IsFinal returns true if no further attempts follow the outcome
func (o Outcome) IsFinal() bool {
	return o == Success || o == Gone || o == ExhaustedFailure
}

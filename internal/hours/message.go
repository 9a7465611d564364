package hours

import "fmt"

// Reply texts sent to chat users.
const (
	AckText     = "Processing your request, please wait..."
	FailureText = "Failed to extract data from the page."
)

// Ack returns the immediate, ephemeral acknowledgement for an hours command.
func Ack() Acknowledgement {
	return Acknowledgement{ResponseType: "ephemeral", Text: AckText}
}

// ComposeMessage renders the two-line reply, or FailureText when either metric is missing.
func ComposeMessage(m Metrics) string {
	if !m.Complete() {
		return FailureText
	}
	return fmt.Sprintf("%s: %d\n%s: %d", LabelHoursPending, *m.HoursPending, LabelHoursApproved, *m.HoursApproved)
}

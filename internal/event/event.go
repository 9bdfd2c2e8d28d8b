package event

type Type string

const (
	TypeToast           Type = "toast"
	TypeReportsState    Type = "reports.state"
	TypeDetailState     Type = "detail.state"
	TypeSubmissionState Type = "submission.state"
	TypeSessionEnded    Type = "session.ended"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	SessionID string `json:"-"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

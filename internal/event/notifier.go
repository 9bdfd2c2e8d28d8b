package event

import "report-portal/internal/model"

// SessionNotifier publishes toasts and view state changes addressed to one
// portal session.
type SessionNotifier struct {
	bus       Bus
	sessionID string
}

func NewSessionNotifier(bus Bus, sessionID string) *SessionNotifier {
	return &SessionNotifier{bus: bus, sessionID: sessionID}
}

func (n *SessionNotifier) Toast(t model.Toast) {
	n.Publish(TypeToast, t)
}

func (n *SessionNotifier) Publish(t Type, payload any) {
	if n == nil || n.bus == nil {
		return
	}
	n.bus.Publish(Event{Type: t, SessionID: n.sessionID, Payload: payload})
}

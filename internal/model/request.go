package model

type FilterRequest struct {
	Filter string `json:"filter" validate:"required,oneof=all daily weekly monthly"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"max=200"`
}

type PageRequest struct {
	Page int `json:"page" validate:"required,min=1"`
}

type CloseDetailRequest struct {
	Reason string `json:"reason" validate:"omitempty,oneof=button backdrop escape"`
}

type ItemStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending good bad flagged"`
}

type CommentRequest struct {
	Comment string `json:"comment" validate:"max=2000"`
}

type AuditActor struct {
	SessionID string `json:"session_id,omitempty"`
	Email     string `json:"email,omitempty"`
	IP        string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt string     `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Details    any        `json:"details,omitempty"`
	Error      string     `json:"error,omitempty"`
}

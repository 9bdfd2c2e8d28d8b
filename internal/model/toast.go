package model

type ToastVariant string

const (
	ToastSuccess ToastVariant = "success"
	ToastError   ToastVariant = "error"
	ToastWarning ToastVariant = "warning"
	ToastInfo    ToastVariant = "info"
)

// Toast is a transient notification shown to the student.
type Toast struct {
	Variant     ToastVariant `json:"variant"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
}

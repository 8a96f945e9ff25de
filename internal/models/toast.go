package models

import "time"

// ToastKind is the severity of a transient toast.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

// Toast is a transient user-facing message. It is never persisted.
type Toast struct {
	Kind    ToastKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

package tasks

import "errors"

// ErrTaskNotFound is returned when a task does not exist or belongs to a
// different user.
var ErrTaskNotFound = errors.New("task not found")

// CreateTaskRequest represents the data needed to create a new task
type CreateTaskRequest struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
}

// UpdateTaskRequest represents the data needed to update an existing task
type UpdateTaskRequest struct {
	Title     string `json:"title"`
	Notes     string `json:"notes"`
	Completed bool   `json:"completed"`
}

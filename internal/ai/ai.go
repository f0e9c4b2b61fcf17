// Package ai suggests task breakdowns and priorities with a hosted completion
// model. Suggestions are advisory and never applied automatically.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Priority is the urgency suggested for a task.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// PriorityTask is one unit of work offered for prioritization.
type PriorityTask struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	AssigneeID  string    `json:"assigneeId"`
}

// Workload is the number of active items a student is working on.
type Workload struct {
	StudentID   string `json:"studentId"`
	ActiveCount int    `json:"activeCount"`
}

// PrioritySuggestion is the model's advice for one task and assignee.
type PrioritySuggestion struct {
	TaskID     string   `json:"taskId"`
	AssigneeID string   `json:"assigneeId"`
	Priority   Priority `json:"priority"`
	Reason     string   `json:"reason"`
}

// StudentTask is an item a student wants ordered.
type StudentTask struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
}

// StudentOrder is a suggested working order with its reasoning.
type StudentOrder struct {
	Tasks     []string `json:"tasks"`
	Reasoning string   `json:"reasoning"`
}

// Suggester produces advisory suggestions.
type Suggester interface {
	SuggestTaskBreakdown(ctx context.Context, title, description string) ([]string, error)
	SuggestPriority(ctx context.Context, tasks []PriorityTask, workloads []Workload) ([]PrioritySuggestion, error)
	SuggestStudentOrder(ctx context.Context, tasks []StudentTask, workload string) (StudentOrder, error)
}

var (
	// ErrUnavailable is returned when no completion model is configured.
	ErrUnavailable = errors.New("suggestions are not configured")
	// ErrMalformedOutput is returned when the model output cannot be used.
	ErrMalformedOutput = errors.New("unparseable model output")
)

// Error reports a failed suggestion. Callers show "could not generate
// suggestions" and carry on.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Disabled is the Suggester used when no model is configured.
type Disabled struct{}

func (Disabled) SuggestTaskBreakdown(context.Context, string, string) ([]string, error) {
	return nil, &Error{Op: "breakdown", Err: ErrUnavailable}
}

func (Disabled) SuggestPriority(context.Context, []PriorityTask, []Workload) ([]PrioritySuggestion, error) {
	return nil, &Error{Op: "priority", Err: ErrUnavailable}
}

func (Disabled) SuggestStudentOrder(context.Context, []StudentTask, string) (StudentOrder, error) {
	return StudentOrder{}, &Error{Op: "student order", Err: ErrUnavailable}
}

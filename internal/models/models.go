package models

import (
	"math"
	"time"
)

// Role fixes what a user may do for the life of the account.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleLecturer
}

// Status is shared by projects and tasks.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusCompleted:  2,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Regresses reports whether moving from s to next goes backwards in the lifecycle.
func (s Status) Regresses(next Status) bool {
	return statusRank[next] < statusRank[s]
}

// User is the profile registered after the identity provider issued the id.
type User struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Role       Role      `json:"role" db:"role"`
	LecturerID *string   `json:"lecturerId,omitempty" db:"lecturer_id"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Project is a unit of academic work created by a lecturer and assigned to students.
type Project struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Deadline    time.Time `json:"deadline" db:"deadline"`
	CreatedBy   string    `json:"createdBy" db:"created_by"`
	AssignedTo  []string  `json:"assignedTo" db:"-"`
	Status      Status    `json:"status" db:"status"`
	Grade       *float64  `json:"grade,omitempty" db:"grade"`
	Version     int64     `json:"version" db:"version"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAssigned reports whether userID is one of the project's students.
func (p Project) IsAssigned(userID string) bool {
	for _, id := range p.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// Task belongs to exactly one project and may have one level of subtasks.
type Task struct {
	ID        string     `json:"id" db:"id"`
	ProjectID string     `json:"projectId" db:"project_id"`
	ParentID  *string    `json:"parentId,omitempty" db:"parent_id"`
	Title     string     `json:"title" db:"title"`
	Status    Status     `json:"status" db:"status"`
	CreatedBy string     `json:"createdBy" db:"created_by"`
	DueDate   *time.Time `json:"dueDate,omitempty" db:"due_date"`
	Grade     *float64   `json:"grade,omitempty" db:"grade"`
	Version   int64      `json:"version" db:"version"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsSubtask reports whether the task hangs off another task.
func (t Task) IsSubtask() bool {
	return t.ParentID != nil && *t.ParentID != ""
}

// Comment is an append-only note on a task.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"taskId" db:"task_id"`
	UserID    string    `json:"userId" db:"user_id"`
	UserName  string    `json:"userName" db:"user_name"`
	UserImage *string   `json:"userImage,omitempty" db:"user_image"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Activity records a human readable line for every lifecycle change.
type Activity struct {
	ID        string    `json:"id" db:"id"`
	ProjectID *string   `json:"projectId,omitempty" db:"project_id"`
	TaskID    *string   `json:"taskId,omitempty" db:"task_id"`
	UserID    string    `json:"userId" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// DeadlineState classifies how close an open item is to its deadline.
type DeadlineState string

const (
	DeadlineNone    DeadlineState = ""
	DeadlineOnTrack DeadlineState = "on_track"
	DeadlineDueSoon DeadlineState = "due_soon"
	DeadlineOverdue DeadlineState = "overdue"
)

// DefaultDueSoonWindow matches the three day warning shown on dashboard cards.
const DefaultDueSoonWindow = 3 * 24 * time.Hour

// Deadline is the badge rendered next to a project or task.
type Deadline struct {
	State    DeadlineState `json:"state,omitempty"`
	DaysLeft int           `json:"daysLeft"`
}

// DeadlineFor computes the badge for an item. Completed items never get one.
func DeadlineFor(status Status, deadline time.Time, now time.Time, window time.Duration) Deadline {
	if status == StatusCompleted || deadline.IsZero() {
		return Deadline{}
	}
	left := deadline.Sub(now)
	days := int(math.Floor(left.Hours() / 24))
	switch {
	case left < 0:
		return Deadline{State: DeadlineOverdue, DaysLeft: days}
	case left <= window:
		return Deadline{State: DeadlineDueSoon, DaysLeft: days}
	default:
		return Deadline{State: DeadlineOnTrack, DaysLeft: days}
	}
}

// Package assignment resolves who is responsible for what. Everything here is
// pure and recomputed from whole snapshots, so callers may pass users and
// projects that arrived in any order.
package assignment

import (
	"classwork/internal/ai"
	"classwork/internal/models"
)

// Unknown is shown for ids that have no matching user.
const Unknown = "Unknown"

// ComputeWorkloads counts each student's projects that are not Completed.
// Every student gets an entry; assignees missing from students still count.
func ComputeWorkloads(projects []models.Project, students []models.User) map[string]int {
	counts := make(map[string]int, len(students))
	for _, s := range students {
		counts[s.ID] = 0
	}
	for _, p := range projects {
		if p.Status == models.StatusCompleted {
			continue
		}
		for _, id := range p.AssignedTo {
			counts[id]++
		}
	}
	return counts
}

// Workloads returns ComputeWorkloads in the order of students.
func Workloads(projects []models.Project, students []models.User) []ai.Workload {
	counts := ComputeWorkloads(projects, students)
	out := make([]ai.Workload, 0, len(students))
	for _, s := range students {
		out = append(out, ai.Workload{StudentID: s.ID, ActiveCount: counts[s.ID]})
	}
	return out
}

// PriorityInputs expands every open project into one entry per assigned student.
func PriorityInputs(projects []models.Project) []ai.PriorityTask {
	var out []ai.PriorityTask
	for _, p := range projects {
		if p.Status == models.StatusCompleted {
			continue
		}
		for _, id := range p.AssignedTo {
			out = append(out, ai.PriorityTask{
				ID:          p.ID,
				Title:       p.Title,
				Description: p.Description,
				Deadline:    p.Deadline,
				AssigneeID:  id,
			})
		}
	}
	return out
}

// Directory maps user ids to display names.
type Directory struct {
	names map[string]string
}

// NewDirectory indexes users by id.
func NewDirectory(users []models.User) Directory {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return Directory{names: names}
}

// Name returns the user's name or Unknown.
func (d Directory) Name(id string) string {
	if name, ok := d.names[id]; ok && name != "" {
		return name
	}
	return Unknown
}

// Names resolves ids in order.
func (d Directory) Names(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = d.Name(id)
	}
	return out
}

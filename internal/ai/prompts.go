package ai

import (
	"strings"
	"text/template"
	"time"
)

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "none"
		}
		return t.UTC().Format("2006-01-02")
	},
}

var breakdownPrompt = template.Must(template.New("breakdown").Funcs(funcs).Parse(
	`You are an expert project manager for academic settings. Your goal is to break down a project into a list of actionable tasks for students.

Based on the project title and description below, generate a list of 3-5 concise task titles. The tasks should be logical steps to complete the project.

Project Title: {{.Title}}
Project Description: {{.Description}}

Respond with JSON only, in the form {"tasks": ["first task", "second task"]}.
`))

var priorityPrompt = template.Must(template.New("priority").Funcs(funcs).Parse(
	`You are an AI assistant helping lecturers prioritize tasks for their students.
Analyze the task descriptions, deadlines, and student workloads to suggest an optimal task prioritization for each student.

Consider the following factors when determining priority:
- Urgency: Tasks with approaching deadlines should be prioritized higher.
- Importance: Tasks with more complex descriptions or significant impact should be prioritized higher.
- Student Workload: Students with heavier workloads should have their tasks prioritized more carefully.

Tasks:
{{range .Tasks}}- Task ID: {{.ID}}, Title: {{.Title}}, Description: {{.Description}}, Deadline: {{date .Deadline}}, Student ID: {{.AssigneeID}}
{{end}}
Student Workloads:
{{range .Workloads}}- Student ID: {{.StudentID}}, Active Count: {{.ActiveCount}}
{{end}}
Provide a priority (High, Medium, Low) and a brief reason for each task and student pair.
Use exactly the task IDs and student IDs given above.
Respond with JSON only, in the form {"prioritySuggestions": [{"taskId": "", "studentId": "", "priority": "", "reason": ""}]}.
`))

var studentOrderPrompt = template.Must(template.New("student").Funcs(funcs).Parse(
	`You are an AI assistant helping students prioritize their tasks.
Given the following tasks, deadlines, and the student's current workload, suggest an optimal task prioritization.
Explain the reasoning behind the suggested prioritization.

Tasks:
{{range .Tasks}}- {{.Title}}: {{.Description}} (deadline {{date .Deadline}})
{{end}}
Current Workload: {{.Workload}}

Consider the deadlines, task descriptions, and the student's current workload to provide the most effective prioritization.
Respond with JSON only, in the form {"prioritizedTasks": ["task title"], "reasoning": ""}, listing the task titles exactly as given.
`))

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const maxBreakdownTasks = 5

// Config holds the Client limits.
type Config struct {
	MaxConcurrent     int // concurrent completions, 0 means unlimited
	RequestsPerMinute int // 0 means unpaced
}

// Client implements Suggester on top of a Completer.
type Client struct {
	completer Completer
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ Suggester = (*Client)(nil)

// NewClient wraps completer with the configured limits.
func NewClient(completer Completer, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{completer: completer, logger: logger}
	if cfg.MaxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

func (c *Client) complete(ctx context.Context, op, prompt string) (string, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return "", err
		}
		defer c.sem.Release(1)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("suggestion failed", slog.String("op", op), slog.String("error", err.Error()))
		return "", err
	}
	return text, nil
}

// SuggestTaskBreakdown proposes task titles for a new project.
func (c *Client) SuggestTaskBreakdown(ctx context.Context, title, description string) ([]string, error) {
	const op = "breakdown"
	prompt, err := render(breakdownPrompt, struct{ Title, Description string }{title, description})
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	text, err := c.complete(ctx, op, prompt)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	out, err := parseJSON[struct {
		Tasks []string `json:"tasks"`
	}](text)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	titles := make([]string, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: no tasks", ErrMalformedOutput)}
	}
	if len(titles) > maxBreakdownTasks {
		titles = titles[:maxBreakdownTasks]
	}
	return titles, nil
}

// SuggestPriority proposes a priority for each task and assignee pair.
// Suggestions naming pairs that were not asked about are dropped.
func (c *Client) SuggestPriority(ctx context.Context, tasks []PriorityTask, workloads []Workload) ([]PrioritySuggestion, error) {
	const op = "priority"
	if len(tasks) == 0 {
		return []PrioritySuggestion{}, nil
	}
	prompt, err := render(priorityPrompt, struct {
		Tasks     []PriorityTask
		Workloads []Workload
	}{tasks, workloads})
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	text, err := c.complete(ctx, op, prompt)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	out, err := parseJSON[struct {
		Suggestions []struct {
			TaskID    string `json:"taskId"`
			StudentID string `json:"studentId"`
			Priority  string `json:"priority"`
			Reason    string `json:"reason"`
		} `json:"prioritySuggestions"`
	}](text)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	type pair struct{ task, student string }
	known := make(map[pair]struct{}, len(tasks))
	for _, t := range tasks {
		known[pair{t.ID, t.AssigneeID}] = struct{}{}
	}

	suggestions := make([]PrioritySuggestion, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if _, ok := known[pair{s.TaskID, s.StudentID}]; !ok {
			continue
		}
		p, ok := normalizePriority(s.Priority)
		if !ok {
			continue
		}
		suggestions = append(suggestions, PrioritySuggestion{
			TaskID:     s.TaskID,
			AssigneeID: s.StudentID,
			Priority:   p,
			Reason:     strings.TrimSpace(s.Reason),
		})
	}
	return suggestions, nil
}

// SuggestStudentOrder proposes the order in which a student should work.
func (c *Client) SuggestStudentOrder(ctx context.Context, tasks []StudentTask, workload string) (StudentOrder, error) {
	const op = "student order"
	if len(tasks) == 0 {
		return StudentOrder{Tasks: []string{}}, nil
	}
	if strings.TrimSpace(workload) == "" {
		workload = "No additional workload specified."
	}
	prompt, err := render(studentOrderPrompt, struct {
		Tasks    []StudentTask
		Workload string
	}{tasks, workload})
	if err != nil {
		return StudentOrder{}, &Error{Op: op, Err: err}
	}
	text, err := c.complete(ctx, op, prompt)
	if err != nil {
		return StudentOrder{}, &Error{Op: op, Err: err}
	}

	out, err := parseJSON[struct {
		Tasks     []string `json:"prioritizedTasks"`
		Reasoning string   `json:"reasoning"`
	}](text)
	if err != nil {
		return StudentOrder{}, &Error{Op: op, Err: err}
	}
	if out.Tasks == nil {
		out.Tasks = []string{}
	}
	return StudentOrder{Tasks: out.Tasks, Reasoning: strings.TrimSpace(out.Reasoning)}, nil
}

package lifecycle

import (
	"context"
	"log/slog"

	"classwork/internal/models"
	"classwork/internal/storage"
)

// NewComment contains information needed to comment on a task.
type NewComment struct {
	TaskID    string  `json:"taskId" validate:"required"`
	UserID    string  `json:"userId" validate:"required"`
	UserName  string  `json:"userName" validate:"required"`
	UserImage *string `json:"userImage"`
	Text      string  `json:"text" validate:"required"`
}

// AddComment appends a comment to an existing task.
func (m *Manager) AddComment(ctx context.Context, nc NewComment) (string, error) {
	nc.TaskID = cleanString(nc.TaskID)
	nc.UserID = cleanString(nc.UserID)
	nc.UserName = cleanString(nc.UserName)
	nc.Text = cleanString(nc.Text)
	if nc.UserImage != nil && cleanString(*nc.UserImage) == "" {
		nc.UserImage = nil
	}
	if err := m.validate.Struct(nc); err != nil {
		return "", err
	}

	comment := models.Comment{
		ID:        m.newID(),
		TaskID:    nc.TaskID,
		UserID:    nc.UserID,
		UserName:  nc.UserName,
		UserImage: nc.UserImage,
		Text:      nc.Text,
		CreatedAt: m.Now(),
	}
	err := m.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetTask(ctx, nc.TaskID); err != nil {
			return err
		}
		return tx.InsertComment(ctx, comment)
	})
	if err != nil {
		return "", storeErr("add comment", err)
	}

	m.logger.Debug("comment added", slog.String("task", comment.TaskID), slog.String("comment", comment.ID))
	return comment.ID, nil
}

// ListComments returns the task's comments ordered by createdAt ascending.
func (m *Manager) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	comments, err := m.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, storeErr("list comments", err)
	}
	return comments, nil
}

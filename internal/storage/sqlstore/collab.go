package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"sprintboard/internal/models"
)

const attachmentColumns = `id, task_id, original_name, stored_name, mime_type, size_bytes, uploaded_by_id, created_at`

// CreateComment persists a comment and returns it with its author resolved.
func (q *Queries) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	_, err := q.exec(ctx, `INSERT INTO comments(id, task_id, author_id, body, created_at) VALUES(?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorID, c.Body, c.CreatedAt)
	if err != nil {
		return models.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return q.GetComment(ctx, c.ID)
}

// GetComment fetches a comment with its author.
func (q *Queries) GetComment(ctx context.Context, id string) (models.Comment, error) {
	var c models.Comment
	if err := q.get(ctx, &c, `SELECT id, task_id, author_id, body, created_at FROM comments WHERE id = ?`, id); err != nil {
		return models.Comment{}, notFound(err, "comment", "get comment")
	}
	if c.AuthorID != nil {
		refs, err := q.UserRefs(ctx, []string{*c.AuthorID})
		if err != nil {
			return models.Comment{}, err
		}
		c.Author = refFor(refs, c.AuthorID)
	}
	return c, nil
}

// ListComments returns the comments of a task in creation order.
func (q *Queries) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := q.selectAll(ctx, &comments, `SELECT id, task_id, author_id, body, created_at
        FROM comments WHERE task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	var ids []string
	for _, c := range comments {
		if c.AuthorID != nil {
			ids = append(ids, *c.AuthorID)
		}
	}
	refs, err := q.UserRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].Author = refFor(refs, comments[i].AuthorID)
	}
	return comments, nil
}

// DeleteComment removes a single comment.
func (q *Queries) DeleteComment(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireAffected(res, "comment")
}

// CreateAttachment persists attachment metadata.
func (q *Queries) CreateAttachment(ctx context.Context, a models.Attachment) (models.Attachment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	_, err := q.exec(ctx, `INSERT INTO attachments(`+attachmentColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.OriginalName, a.StoredName, a.MimeType, a.SizeBytes, a.UploadedByID, a.CreatedAt)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return q.GetAttachment(ctx, a.ID)
}

// GetAttachment fetches attachment metadata with its uploader.
func (q *Queries) GetAttachment(ctx context.Context, id string) (models.Attachment, error) {
	var a models.Attachment
	if err := q.get(ctx, &a, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id); err != nil {
		return models.Attachment{}, notFound(err, "attachment", "get attachment")
	}
	if a.UploadedByID != nil {
		refs, err := q.UserRefs(ctx, []string{*a.UploadedByID})
		if err != nil {
			return models.Attachment{}, err
		}
		a.UploadedBy = refFor(refs, a.UploadedByID)
	}
	return a, nil
}

// ListAttachments returns the attachments of a task, newest first.
func (q *Queries) ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	err := q.selectAll(ctx, &attachments, `SELECT `+attachmentColumns+`
        FROM attachments WHERE task_id = ? ORDER BY created_at DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	var ids []string
	for _, a := range attachments {
		if a.UploadedByID != nil {
			ids = append(ids, *a.UploadedByID)
		}
	}
	refs, err := q.UserRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range attachments {
		attachments[i].UploadedBy = refFor(refs, attachments[i].UploadedByID)
	}
	return attachments, nil
}

// DeleteAttachment removes the metadata row only.
func (q *Queries) DeleteAttachment(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return requireAffected(res, "attachment")
}

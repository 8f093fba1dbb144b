package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"sprintboard/internal/access"
	"sprintboard/internal/apperr"
	"sprintboard/internal/blob"
	"sprintboard/internal/models"
	"sprintboard/internal/storage/sqlstore"
)

// MaxAttachmentSize is the upload ceiling.
const MaxAttachmentSize int64 = 25 << 20

// AllowedExtensions are the accepted attachment types, lower case without dot.
var AllowedExtensions = map[string]struct{}{
	"pdf": {}, "docx": {}, "pptx": {}, "xlsx": {}, "png": {},
	"jpg": {}, "jpeg": {}, "txt": {}, "md": {}, "zip": {},
}

const sniffLen = 3072

// CollabService manages comments and attachments on tasks.
type CollabService struct {
	store  *sqlstore.Store
	blobs  blob.Store
	logger *slog.Logger
}

func NewCollabService(store *sqlstore.Store, blobs blob.Store, logger *slog.Logger) *CollabService {
	return &CollabService{store: store, blobs: blobs, logger: logger}
}

// AddComment posts body on the task as the actor.
func (s *CollabService) AddComment(ctx context.Context, actor *access.Principal, taskID, body string) (_ models.Comment, err error) {
	ctx, span := startSpan(ctx, "CollabService.AddComment", attribute.String("task.id", taskID))
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return models.Comment{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Comment{}, apperr.Validation("comment cannot be empty")
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return models.Comment{}, err
	}
	return s.store.CreateComment(ctx, models.Comment{TaskID: taskID, AuthorID: &p.ID, Body: body})
}

// DeleteComment is allowed to the author and to admins.
func (s *CollabService) DeleteComment(ctx context.Context, actor *access.Principal, id string) (err error) {
	ctx, span := startSpan(ctx, "CollabService.DeleteComment", attribute.String("comment.id", id))
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return err
	}
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && !owns(p, comment.AuthorID) {
		return apperr.Forbidden("only the author or an admin can delete this comment")
	}
	return s.store.DeleteComment(ctx, id)
}

// Upload is a file received for a task.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// AddAttachment checks the task exists, validates the upload, hands the bytes
// to the blob store and records the returned locator. Rejected uploads never
// reach the blob store.
func (s *CollabService) AddAttachment(ctx context.Context, actor *access.Principal, taskID string, up Upload) (_ models.Attachment, err error) {
	ctx, span := startSpan(ctx, "CollabService.AddAttachment", attribute.String("task.id", taskID))
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return models.Attachment{}, err
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return models.Attachment{}, err
	}
	name, err := validateUpload(up)
	if err != nil {
		return models.Attachment{}, err
	}

	body, mimeType, err := sniff(up)
	if err != nil {
		return models.Attachment{}, err
	}

	locator, err := s.blobs.Put(ctx, fmt.Sprintf("attachments/%s/%s-%s", taskID, uuid.NewString(), name), body)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("store attachment: %w", err)
	}

	attachment, err := s.store.CreateAttachment(ctx, models.Attachment{
		TaskID:       taskID,
		OriginalName: name,
		StoredName:   locator,
		MimeType:     mimeType,
		SizeBytes:    up.Size,
		UploadedByID: &p.ID,
	})
	if err != nil {
		if derr := s.blobs.Delete(ctx, locator); derr != nil {
			s.logger.Warn("orphaned blob", "locator", locator, "error", apperr.Degraded("delete blob", derr))
		}
		return models.Attachment{}, err
	}

	span.SetAttributes(attribute.Int64("attachment.size", up.Size))
	s.logger.Info("attachment added", "attachment_id", attachment.ID, "task_id", taskID, "size", up.Size, "actor", p.ID)
	return attachment, nil
}

// Attachment returns the metadata of a single attachment.
func (s *CollabService) Attachment(ctx context.Context, actor *access.Principal, id string) (_ models.Attachment, err error) {
	ctx, span := startSpan(ctx, "CollabService.Attachment", attribute.String("attachment.id", id))
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAuth(actor); err != nil {
		return models.Attachment{}, err
	}
	return s.store.GetAttachment(ctx, id)
}

// DeleteAttachment is allowed to the uploader and to admins. The blob goes
// first, best-effort; the metadata row is removed either way.
func (s *CollabService) DeleteAttachment(ctx context.Context, actor *access.Principal, id string) (err error) {
	ctx, span := startSpan(ctx, "CollabService.DeleteAttachment", attribute.String("attachment.id", id))
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return err
	}
	attachment, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && !owns(p, attachment.UploadedByID) {
		return apperr.Forbidden("only the uploader or an admin can delete this attachment")
	}

	if err := s.blobs.Delete(ctx, attachment.StoredName); err != nil {
		degraded := apperr.Degraded("delete blob", err)
		span.RecordError(degraded)
		s.logger.Warn("blob deletion failed, removing metadata anyway",
			"attachment_id", id, "locator", attachment.StoredName, "error", degraded)
	}
	return s.store.DeleteAttachment(ctx, id)
}

// validateUpload returns the cleaned file name.
func validateUpload(up Upload) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(up.Name), "\\", "/"))
	if up.Body == nil || name == "" || name == "." || name == "/" {
		return "", apperr.Validation("no file provided")
	}
	if up.Size > MaxAttachmentSize {
		return "", apperr.Validation("file exceeds the 25 MB limit")
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if _, ok := AllowedExtensions[ext]; !ok {
		return "", apperr.Validation(fmt.Sprintf("file type .%s is not allowed", ext))
	}
	return name, nil
}

// sniff keeps the declared content type unless it is missing or generic, in
// which case the leading bytes decide. The returned reader replays them.
func sniff(up Upload) (io.Reader, string, error) {
	declared := strings.TrimSpace(up.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		return up.Body, declared, nil
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), up.Body), mimetype.Detect(head).String(), nil
}

func owns(p access.Principal, ownerID *string) bool {
	return ownerID != nil && *ownerID == p.ID
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dokumen-api/internal/models"
)

const documentColumns = `id, user_id, title, type, status, file_path, thumbnail_path, file_size, mime_type,
       expiry_date, extracted_data, confidence, reminder_type, reminder_date, reminder_sent_at, uploaded_at, updated_at`

var documentSortColumns = map[string]string{
	"uploaded_at": "uploaded_at",
	"title":       "title",
	"expiry_date": "expiry_date",
	"status":      "status",
}

// DocumentRepository handles document metadata persistence.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores metadata for an uploaded document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now
	const query = `INSERT INTO documents
	(id, user_id, title, type, status, file_path, thumbnail_path, file_size, mime_type, expiry_date, extracted_data,
	 confidence, reminder_type, reminder_date, reminder_sent_at, uploaded_at, updated_at)
	VALUES (:id, :user_id, :title, :type, :status, :file_path, :thumbnail_path, :file_size, :mime_type, :expiry_date, :extracted_data,
	 :confidence, :reminder_type, :reminder_date, :reminder_sent_at, :uploaded_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document owned by userID.
func (r *DocumentRepository) GetByID(ctx context.Context, userID, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND user_id = $2`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// List returns one page of a user's documents and the total match count.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	sortColumn, ok := documentSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "uploaded_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM documents%s ORDER BY %s %s NULLS LAST, id LIMIT %d OFFSET %d",
		documentColumns, where, sortColumn, sortOrder, size, (page-1)*size)

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}

// ListWithExpiry returns every document of userID that carries an expiry date, soonest first.
func (r *DocumentRepository) ListWithExpiry(ctx context.Context, userID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 AND expiry_date IS NOT NULL ORDER BY expiry_date ASC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, userID); err != nil {
		return nil, fmt.Errorf("list documents with expiry: %w", err)
	}
	return docs, nil
}

// ListDueReminders returns completed documents whose reminder date has passed and that
// have not been reminded yet.
func (r *DocumentRepository) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE status = 'completed' AND reminder_date IS NOT NULL AND reminder_date <= $1 AND reminder_sent_at IS NULL
	ORDER BY reminder_date ASC LIMIT $2`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return docs, nil
}

// ListExpired returns completed documents whose expiry date has passed.
func (r *DocumentRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE status = 'completed' AND expiry_date IS NOT NULL AND expiry_date <= $1
	ORDER BY expiry_date ASC LIMIT $2`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, now, limit); err != nil {
		return nil, fmt.Errorf("list expired documents: %w", err)
	}
	return docs, nil
}

// Update persists the mutable fields of doc.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET title = :title, type = :type, status = :status, expiry_date = :expiry_date,
	extracted_data = :extracted_data, confidence = :confidence, reminder_type = :reminder_type,
	reminder_date = :reminder_date, reminder_sent_at = :reminder_sent_at, updated_at = :updated_at
	WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireAffected(res, "update document")
}

// MarkReminderSent records that the reminder for id was delivered.
func (r *DocumentRepository) MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error {
	const query = `UPDATE documents SET reminder_sent_at = $2, updated_at = $2 WHERE id = $1 AND reminder_sent_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, sentAt)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return requireAffected(res, "mark reminder sent")
}

// MarkExpired moves a completed document to expired.
func (r *DocumentRepository) MarkExpired(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE documents SET status = 'expired', updated_at = $2 WHERE id = $1 AND status = 'completed'`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark document expired: %w", err)
	}
	return requireAffected(res, "mark document expired")
}

// Delete removes a document row owned by userID.
func (r *DocumentRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM documents WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res, "delete document")
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// MediaTypeDOCX is the media type of Word documents.
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	// MediaTypePDF is the media type of converted outputs.
	MediaTypePDF = "application/pdf"
)

// PutContent stores a blob and returns its generated identifier. An empty
// mediaType is sniffed from the data.
func (s *Store) PutContent(ctx context.Context, data []byte, name, mediaType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("put content: data is empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "content"
	}
	if strings.TrimSpace(mediaType) == "" {
		mediaType = detectMediaType(name, data)
	}
	id := uuid.NewString()
	if _, err := s.exec(
		ctx,
		`INSERT INTO contents (id, name, media_type, size, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, mediaType, len(data), data, formatTime(s.clock()),
	); err != nil {
		return "", fmt.Errorf("insert content: %w", err)
	}
	return id, nil
}

// UploadContent stores a generated output document.
func (s *Store) UploadContent(ctx context.Context, data []byte, name string) (string, error) {
	return s.PutContent(ctx, data, name, "")
}

// DownloadContent returns the bytes of a stored blob.
func (s *Store) DownloadContent(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM contents WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("download content: %w", err)
	}
	return data, nil
}

// GetContent returns a stored blob together with its metadata.
func (s *Store) GetContent(ctx context.Context, id string) (*Content, error) {
	var (
		content    Content
		createdRaw string
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, media_type, size, data, created_at FROM contents WHERE id = ?`,
		id,
	).Scan(&content.ID, &content.Name, &content.MediaType, &content.Size, &content.Data, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	content.CreatedAt = parseStoredTime(createdRaw)
	return &content, nil
}

// ListContents returns blob metadata without the payload bytes.
func (s *Store) ListContents(ctx context.Context) ([]*Content, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, media_type, size, created_at FROM contents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	defer rows.Close()

	var out []*Content
	for rows.Next() {
		var (
			content    Content
			createdRaw string
		)
		if err := rows.Scan(&content.ID, &content.Name, &content.MediaType, &content.Size, &createdRaw); err != nil {
			return nil, err
		}
		content.CreatedAt = parseStoredTime(createdRaw)
		out = append(out, &content)
	}
	return out, rows.Err()
}

// DeleteContent removes a stored blob.
func (s *Store) DeleteContent(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM contents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func detectMediaType(name string, data []byte) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".docx"):
		return MediaTypeDOCX
	case strings.HasSuffix(lower, ".pdf"):
		return MediaTypePDF
	}
	return http.DetectContentType(data)
}

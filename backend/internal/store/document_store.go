package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("DOCUMENT_NOT_FOUND")

// DocumentRecord is the documents table: the source the content fetch reads
// initial content from on first join. Live edits never write back here; the
// row is the parse/import result of the external content pipeline.
type DocumentRecord struct {
	ID      uint64 `gorm:"primaryKey"`
	OwnerID uint64 `gorm:"column:owner_id"`
	Title   string `gorm:"uniqueIndex;size:255"`
	Content string `gorm:"type:longtext"`
}

func (DocumentRecord) TableName() string { return "documents" }

type DocumentStore struct{ db *gorm.DB }

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (s *DocumentStore) CreateDocument(ctx context.Context, ownerID uint64, title, content string) (uint64, error) {
	rec := DocumentRecord{OwnerID: ownerID, Title: title, Content: content}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (s *DocumentStore) GetDocument(ctx context.Context, title string) (*DocumentRecord, error) {
	var rec DocumentRecord
	err := s.db.WithContext(ctx).Where("title = ?", title).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, title)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FetchContent is the content-fetch collaborator for the session registry:
// called at most once per title per creation attempt.
func (s *DocumentStore) FetchContent(ctx context.Context, title string) (string, error) {
	rec, err := s.GetDocument(ctx, title)
	if err != nil {
		return "", err
	}
	return rec.Content, nil
}

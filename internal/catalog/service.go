package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// Entry is the transport shape shared by brands and categories.
type Entry struct {
	ID           types.ObjectID `json:"id"`
	Title        string         `json:"title"`
	EnglishTitle string         `json:"englishTitle"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// CreateInput is the payload for a new brand or category.
type CreateInput struct {
	Title        string `json:"title" validate:"required,min=2,max=100"`
	EnglishTitle string `json:"englishTitle" validate:"required,min=2,max=100"`
}

type Service interface {
	CreateBrand(ctx context.Context, input CreateInput) (*Entry, error)
	ListBrands(ctx context.Context) ([]Entry, error)
	DeleteBrand(ctx context.Context, id types.ObjectID) error
	CreateCategory(ctx context.Context, input CreateInput) (*Entry, error)
	ListCategories(ctx context.Context) ([]Entry, error)
	DeleteCategory(ctx context.Context, id types.ObjectID) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateBrand(ctx context.Context, input CreateInput) (*Entry, error) {
	title, english, err := normalize(input)
	if err != nil {
		return nil, err
	}
	row := &models.Brand{Title: title, EnglishTitle: english}
	if err := s.repo.CreateBrand(ctx, row); err != nil {
		return nil, createError(err, "brand")
	}
	return &Entry{ID: row.ID, Title: row.Title, EnglishTitle: row.EnglishTitle, CreatedAt: row.CreatedAt}, nil
}

func (s *service) ListBrands(ctx context.Context) ([]Entry, error) {
	rows, err := s.repo.ListBrands(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list brands")
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{ID: row.ID, Title: row.Title, EnglishTitle: row.EnglishTitle, CreatedAt: row.CreatedAt})
	}
	return out, nil
}

func (s *service) DeleteBrand(ctx context.Context, id types.ObjectID) error {
	return s.delete(ctx, id, "brand", "brand_id", s.repo.DeleteBrand)
}

func (s *service) CreateCategory(ctx context.Context, input CreateInput) (*Entry, error) {
	title, english, err := normalize(input)
	if err != nil {
		return nil, err
	}
	row := &models.Category{Title: title, EnglishTitle: english}
	if err := s.repo.CreateCategory(ctx, row); err != nil {
		return nil, createError(err, "category")
	}
	return &Entry{ID: row.ID, Title: row.Title, EnglishTitle: row.EnglishTitle, CreatedAt: row.CreatedAt}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]Entry, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{ID: row.ID, Title: row.Title, EnglishTitle: row.EnglishTitle, CreatedAt: row.CreatedAt})
	}
	return out, nil
}

func (s *service) DeleteCategory(ctx context.Context, id types.ObjectID) error {
	return s.delete(ctx, id, "category", "category_id", s.repo.DeleteCategory)
}

func (s *service) delete(ctx context.Context, id types.ObjectID, kind, column string, del func(context.Context, types.ObjectID) (bool, error)) error {
	refs, err := s.repo.CountProductsReferencing(ctx, column, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	if refs > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s is used by %d product(s)", kind, refs))
	}
	deleted, err := del(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete "+kind)
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, kind+" not found")
	}
	return nil
}

func normalize(input CreateInput) (string, string, error) {
	title := strings.TrimSpace(input.Title)
	english := strings.ToLower(strings.TrimSpace(input.EnglishTitle))
	if title == "" || english == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "title and englishTitle are required")
	}
	return title, english, nil
}

func createError(err error, kind string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, kind+" already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create "+kind)
}

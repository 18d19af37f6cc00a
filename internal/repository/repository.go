// Package repository persists users and products with gorm and reports failures as typed errors.
package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/shopadmin/internal/models"
	"github.com/charlesng35/shopadmin/pkg/validator"
)

// Filter matches records by column equality.
type Filter map[string]any

// Repository is the persistence contract used by the entity services.
type Repository[T any] interface {
	// FindByID loads a record. When columns are given only those are populated.
	FindByID(ctx context.Context, id string, columns ...string) (*T, error)
	FindOne(ctx context.Context, filter Filter) (*T, error)
	Insert(ctx context.Context, record *T) error
	// UpdateByID applies fields (column name to value) and returns the stored record.
	UpdateByID(ctx context.Context, id string, fields map[string]any) (*T, error)
	DeleteByID(ctx context.Context, id string) error
	// List returns records whose search columns contain search case-insensitively,
	// newest first. An empty search returns every record.
	List(ctx context.Context, search string) ([]T, error)
}

// UserRepository persists user accounts.
type UserRepository = Repository[models.User]

// ProductRepository persists products.
type ProductRepository = Repository[models.Product]

type gormRepository[T any] struct {
	db            *gorm.DB
	table         string
	searchColumns []string
}

// NewUserRepository returns a gorm backed UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormRepository[models.User]{db: db, table: "users", searchColumns: []string{"username", "name", "email"}}
}

// NewProductRepository returns a gorm backed ProductRepository.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &gormRepository[models.Product]{db: db, table: "products", searchColumns: []string{"name"}}
}

func (r *gormRepository[T]) FindByID(ctx context.Context, id string, columns ...string) (*T, error) {
	query := r.db.WithContext(ctx)
	if len(columns) > 0 {
		query = query.Select(append([]string{"id"}, columns...))
	}

	var record T
	if err := query.Take(&record, "id = ?", id).Error; err != nil {
		return nil, classify(r.table, err)
	}
	return &record, nil
}

func (r *gormRepository[T]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	if len(filter) == 0 {
		return nil, errors.New("repository: empty filter")
	}

	var record T
	if err := r.db.WithContext(ctx).Where(map[string]any(filter)).Take(&record).Error; err != nil {
		return nil, classify(r.table, err)
	}
	return &record, nil
}

func (r *gormRepository[T]) Insert(ctx context.Context, record *T) error {
	if err := validate(record); err != nil {
		return err
	}
	return classify(r.table, r.db.WithContext(ctx).Create(record).Error)
}

func (r *gormRepository[T]) UpdateByID(ctx context.Context, id string, fields map[string]any) (*T, error) {
	var updated T
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current T
		if err := tx.Take(&current, "id = ?", id).Error; err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Model(&current).Updates(fields).Error; err != nil {
				return err
			}
		}
		if err := tx.Take(&updated, "id = ?", id).Error; err != nil {
			return err
		}
		return validate(&updated)
	})

	var invalid *FieldValidationError
	if errors.As(err, &invalid) {
		return nil, invalid
	}
	if err != nil {
		return nil, classify(r.table, err)
	}
	return &updated, nil
}

func (r *gormRepository[T]) DeleteByID(ctx context.Context, id string) error {
	var record T
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&record)
	if result.Error != nil {
		return classify(r.table, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository[T]) List(ctx context.Context, search string) ([]T, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id")

	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		clauses := make([]string, 0, len(r.searchColumns))
		args := make([]any, 0, len(r.searchColumns))
		for _, column := range r.searchColumns {
			clauses = append(clauses, "LOWER("+column+") LIKE ? ESCAPE '!'")
			args = append(args, pattern)
		}
		query = query.Where(strings.Join(clauses, " OR "), args...)
	}

	records := make([]T, 0)
	if err := query.Find(&records).Error; err != nil {
		return nil, classify(r.table, err)
	}
	return records, nil
}

func validate(record any) error {
	if err := validator.ValidateStruct(record); err != nil {
		var failures validator.ValidationErrors
		if errors.As(err, &failures) {
			return &FieldValidationError{Failures: failures}
		}
		return err
	}
	return nil
}

func escapeLike(term string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(term)
}

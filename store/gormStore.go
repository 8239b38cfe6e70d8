package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// GormStore backs the port with the shared MySQL connection. Table names come
// from the entity type, so the engines stay decoupled from gorm model
// conventions.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Get(ctx context.Context, entity EntityType, out interface{}, conds Conds) error {

	err := s.DB.WithContext(ctx).
		Table(string(entity)).
		Where(map[string]interface{}(conds)).
		First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) List(ctx context.Context, entity EntityType, out interface{}, conds Conds, orderBy string) error {

	query := s.DB.WithContext(ctx).
		Table(string(entity)).
		Where(map[string]interface{}(conds))
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	return query.Find(out).Error
}

func (s *GormStore) Put(ctx context.Context, entity EntityType, record interface{}) error {
	return s.DB.WithContext(ctx).Table(string(entity)).Save(record).Error
}

// AppendOnly relies on the table's unique index for the conflict check; the
// uniqueCols argument is documentation here, MySQL enforces it.
func (s *GormStore) AppendOnly(ctx context.Context, entity EntityType, record interface{}, uniqueCols ...string) error {

	err := s.DB.WithContext(ctx).Table(string(entity)).Create(record).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "Duplicate entry") {
		return ErrConflict
	}
	return err
}

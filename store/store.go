// Package store is the persistence port used by the roadmap, matching,
// request and kpi engines. Records are addressed by entity type and matched
// with column/value conditions; implementations exist for MySQL (gorm) and
// in-memory (tests, local runs).
package store

import (
	"context"
	"errors"
)

type EntityType string

const (
	EntityStartupProfile     EntityType = "startup_profiles"
	EntityPartnerProfile     EntityType = "partner_profiles"
	EntityLevelDefinition    EntityType = "level_definitions"
	EntityTaskInstance       EntityType = "task_instances"
	EntityPartnershipRequest EntityType = "partnership_requests"
	EntityKPIRecord          EntityType = "kpi_records"
)

var (
	ErrNotFound = errors.New("store: record not found")
	ErrConflict = errors.New("store: unique constraint conflict")
)

// Conds are column/value equality conditions, keyed by snake_case column name.
type Conds map[string]interface{}

// RecordStore is the persistence port. out parameters must be pointers
// (*T for Get, *[]*T for List); record parameters must be *T.
//
// AppendOnly inserts a new record and fails with ErrConflict when another
// record already holds the same values in uniqueCols. Appended records are
// never updated afterwards.
type RecordStore interface {
	Get(ctx context.Context, entity EntityType, out interface{}, conds Conds) error
	List(ctx context.Context, entity EntityType, out interface{}, conds Conds, orderBy string) error
	Put(ctx context.Context, entity EntityType, record interface{}) error
	AppendOnly(ctx context.Context, entity EntityType, record interface{}, uniqueCols ...string) error
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore keeps records as decoded JSON rows, keyed by the same snake_case
// column names the MySQL schema uses. It exists for tests and for local runs
// without a database; semantics mirror GormStore including autoincrement ids.
type MemStore struct {
	mu     sync.RWMutex
	rows   map[EntityType][]map[string]interface{}
	nextId map[EntityType]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		rows:   make(map[EntityType][]map[string]interface{}),
		nextId: make(map[EntityType]int),
	}
}

func toRow(record interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var row map[string]interface{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func fromRow(row map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// matches compares loosely on formatted values so int conds match the float64
// values json decoding produces.
func matches(row map[string]interface{}, conds Conds) bool {
	for col, want := range conds {
		got, ok := row[col]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// isZeroId treats missing, 0 and "" as unassigned.
func isZeroId(v interface{}) bool {
	switch id := v.(type) {
	case nil:
		return true
	case float64:
		return id == 0
	case string:
		return id == ""
	default:
		return false
	}
}

func (s *MemStore) assignId(entity EntityType, row map[string]interface{}) {
	if _, ok := row["id"]; !ok {
		return
	}
	if !isZeroId(row["id"]) {
		return
	}
	if _, isString := row["id"].(string); isString {
		// string ids are caller-assigned (uuid)
		return
	}
	s.nextId[entity]++
	row["id"] = float64(s.nextId[entity])
}

func (s *MemStore) Get(ctx context.Context, entity EntityType, out interface{}, conds Conds) error {

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows[entity] {
		if matches(row, conds) {
			return fromRow(row, out)
		}
	}
	return ErrNotFound
}

func (s *MemStore) List(ctx context.Context, entity EntityType, out interface{}, conds Conds, orderBy string) error {

	s.mu.RLock()
	matched := make([]map[string]interface{}, 0)
	for _, row := range s.rows[entity] {
		if matches(row, conds) {
			matched = append(matched, row)
		}
	}
	s.mu.RUnlock()

	if orderBy != "" {
		col := orderBy
		desc := false
		if strings.HasSuffix(strings.ToUpper(orderBy), " DESC") {
			col = strings.TrimSpace(orderBy[:len(orderBy)-5])
			desc = true
		}
		sort.SliceStable(matched, func(i, j int) bool {
			less := lessValue(matched[i][col], matched[j][col])
			if desc {
				return lessValue(matched[j][col], matched[i][col])
			}
			return less
		})
	}

	data, err := json.Marshal(matched)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func lessValue(a, b interface{}) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

// Put inserts the record, or replaces the stored row with the same id.
func (s *MemStore) Put(ctx context.Context, entity EntityType, record interface{}) error {

	row, err := toRow(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignId(entity, row)
	id := fmt.Sprintf("%v", row["id"])
	for i, existing := range s.rows[entity] {
		if fmt.Sprintf("%v", existing["id"]) == id {
			s.rows[entity][i] = row
			return fromRow(row, record)
		}
	}
	s.rows[entity] = append(s.rows[entity], row)
	return fromRow(row, record)
}

func (s *MemStore) AppendOnly(ctx context.Context, entity EntityType, record interface{}, uniqueCols ...string) error {

	row, err := toRow(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(uniqueCols) > 0 {
		conds := make(Conds, len(uniqueCols))
		for _, col := range uniqueCols {
			conds[col] = row[col]
		}
		for _, existing := range s.rows[entity] {
			if matches(existing, conds) {
				return ErrConflict
			}
		}
	}

	s.assignId(entity, row)
	s.rows[entity] = append(s.rows[entity], row)
	return fromRow(row, record)
}

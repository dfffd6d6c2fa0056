// Package warehouse owns the persisted tables: it resolves watermarks and runs
// the staging + merge upsert.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultBatchSize = 500

type Store struct {
	db        *gorm.DB
	batchSize int
}

func New(db *gorm.DB, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{db: db, batchSize: batchSize}
}

func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return errors.New("warehouse store is not initialized")
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) dialect() string {
	return s.db.Dialector.Name()
}

// Table describes a persisted table. It is derived from the gorm schema of the
// model so merge keys always match the primary key.
type Table struct {
	Name            string
	MergeKeys       []string
	EntityColumn    string
	WatermarkColumn string
	Columns         []string
}

// UpdateColumns are the columns overwritten when a merge key already exists.
func (t Table) UpdateColumns() []string {
	keys := make(map[string]struct{}, len(t.MergeKeys))
	for _, k := range t.MergeKeys {
		keys[k] = struct{}{}
	}
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if _, ok := keys[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

const EntityColumn = "ticker"

// Describe parses model and returns its table description. watermarkColumn
// may be empty for snapshot sources.
func (s *Store) Describe(model any, watermarkColumn string) (Table, error) {
	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(model); err != nil {
		return Table{}, fmt.Errorf("parse model: %w", err)
	}
	sch := stmt.Schema
	if len(sch.PrimaryFieldDBNames) == 0 {
		return Table{}, fmt.Errorf("table %s has no merge key", sch.Table)
	}
	t := Table{
		Name:            sch.Table,
		MergeKeys:       append([]string(nil), sch.PrimaryFieldDBNames...),
		EntityColumn:    EntityColumn,
		WatermarkColumn: watermarkColumn,
		Columns:         append([]string(nil), sch.DBNames...),
	}
	if sch.LookUpField(EntityColumn) == nil {
		return Table{}, fmt.Errorf("table %s has no %s column", t.Name, EntityColumn)
	}
	if watermarkColumn != "" && sch.LookUpField(watermarkColumn) == nil {
		return Table{}, fmt.Errorf("table %s has no watermark column %s", t.Name, watermarkColumn)
	}
	return t, nil
}

// Watermark returns MAX(watermark column) for entityKey, or nil when the entity
// has no rows or the table has no watermark.
func (s *Store) Watermark(ctx context.Context, t Table, entityKey string) (*string, error) {
	if t.WatermarkColumn == "" {
		return nil, nil
	}
	var mark sql.NullString
	row := s.db.WithContext(ctx).
		Table(t.Name).
		Select("MAX(?)", clause.Column{Name: t.WatermarkColumn}).
		Where(clause.Eq{Column: clause.Column{Name: t.EntityColumn}, Value: entityKey}).
		Row()
	if err := row.Scan(&mark); err != nil {
		return nil, fmt.Errorf("watermark %s/%s: %w", t.Name, entityKey, err)
	}
	if !mark.Valid || mark.String == "" {
		return nil, nil
	}
	v := mark.String
	return &v, nil
}

// Count returns the number of rows stored for entityKey.
func (s *Store) Count(ctx context.Context, t Table, entityKey string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Table(t.Name).
		Where(clause.Eq{Column: clause.Column{Name: t.EntityColumn}, Value: entityKey}).
		Count(&n).Error
	return n, err
}

type runIDKey struct{}

// WithRunID attaches the pipeline run id used to name staging tables.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func RunIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

func stagingName(table, runID string) string {
	if runID == "" {
		runID = uuid.NewString()
	}
	suffix := make([]byte, 0, len(runID))
	for i := 0; i < len(runID); i++ {
		c := runID[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			suffix = append(suffix, c)
		case c >= 'A' && c <= 'Z':
			suffix = append(suffix, c+'a'-'A')
		}
	}
	name := "stg_" + table + "_" + string(suffix)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

package warehouse

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raghuneu/finsage/internal/ingesterr"
)

type Result struct {
	Table     string `json:"table"`
	Attempted int    `json:"attempted"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Affected  int64  `json:"affected"`
}

// Upsert merges rows into t through a staging table inside one transaction.
// Rows whose merge key exists are overwritten, the rest are inserted. On any
// error the transaction is rolled back and an *ingesterr.UpsertError returned.
func Upsert[T any](ctx context.Context, s *Store, t Table, rows []T) (Result, error) {
	res := Result{Table: t.Name, Attempted: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}
	staging := stagingName(t.Name, RunIDFrom(ctx))

	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if s.dialect() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", t.Name).Error; err != nil {
				return fmt.Errorf("lock: %w", err)
			}
		}
		if err := tx.Exec("DROP TABLE IF EXISTS ?", clause.Table{Name: staging}).Error; err != nil {
			return fmt.Errorf("drop stale staging: %w", err)
		}
		if err := tx.Exec("CREATE TEMPORARY TABLE ? AS SELECT * FROM ? WHERE 1 = 0",
			clause.Table{Name: staging}, clause.Table{Name: t.Name}).Error; err != nil {
			return fmt.Errorf("create staging: %w", err)
		}
		if err := tx.Table(staging).CreateInBatches(&rows, s.batchSize).Error; err != nil {
			return fmt.Errorf("write staging: %w", err)
		}

		q := tx.Statement.Quote
		var matched int64
		if err := tx.Raw(matchedSQL(q, t, staging)).Scan(&matched).Error; err != nil {
			return fmt.Errorf("count matches: %w", err)
		}

		merge := tx.Exec(mergeSQL(q, t, staging))
		if merge.Error != nil {
			return fmt.Errorf("merge: %w", merge.Error)
		}

		if err := tx.Exec("DROP TABLE ?", clause.Table{Name: staging}).Error; err != nil {
			return fmt.Errorf("drop staging: %w", err)
		}

		res.Updated = int(matched)
		res.Inserted = len(rows) - int(matched)
		res.Affected = merge.RowsAffected
		return nil
	})
	if err != nil {
		return Result{Table: t.Name, Attempted: len(rows)}, &ingesterr.UpsertError{Table: t.Name, Attempted: len(rows), Err: err}
	}
	return res, nil
}

func matchedSQL(q func(any) string, t Table, staging string) string {
	conds := make([]string, len(t.MergeKeys))
	for i, k := range t.MergeKeys {
		conds[i] = q("t."+k) + " = " + q("s."+k)
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s %s WHERE EXISTS (SELECT 1 FROM %s %s WHERE %s)",
		q(staging), q("s"), q(t.Name), q("t"), strings.Join(conds, " AND "))
}

func mergeSQL(q func(any) string, t Table, staging string) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = q(c)
	}
	keys := make([]string, len(t.MergeKeys))
	for i, k := range t.MergeKeys {
		keys[i] = q(k)
	}
	colList := strings.Join(cols, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s WHERE true ON CONFLICT (%s) ",
		q(t.Name), colList, colList, q(staging), strings.Join(keys, ", "))

	updates := t.UpdateColumns()
	if len(updates) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	sets := make([]string, len(updates))
	for i, c := range updates {
		sets[i] = q(c) + " = excluded." + q(c)
	}
	b.WriteString("DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}

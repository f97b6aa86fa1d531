package database

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk upsert target.
type UpsertConfig struct {
	Table        string
	Columns      []string
	ConflictKeys []string
	// UpdateCols defaults to every non-key column.
	UpdateCols []string
}

// TempTable returns the name of the staging table used for cfg.
func (cfg UpsertConfig) TempTable() string {
	return "_tmp_upsert_" + strings.ReplaceAll(cfg.Table, ".", "_")
}

// BulkUpsert stages rows in a temp table with COPY, then merges them into the
// target with INSERT ... ON CONFLICT DO UPDATE. It runs inside tx so the
// caller can commit it together with other writes; the temp table is dropped
// on commit.
func BulkUpsert(ctx context.Context, tx pgx.Tx, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("database: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("database: upsert: no conflict keys specified")
	}

	rows, err := dedupeRows(cfg, rows)
	if err != nil {
		return 0, err
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		keys := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			keys[k] = true
		}
		for _, c := range cfg.Columns {
			if !keys[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	temp := cfg.TempTable()
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE IF NOT EXISTS %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "database: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "database: upsert: copy into temp table for %s", cfg.Table)
	}

	sets := make([]string, len(updateCols))
	for i, col := range updateCols {
		quoted := pgx.Identifier{col}.Sanitize()
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted)
	}
	cols := quoteAndJoin(cfg.Columns)
	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(cfg.Table),
		cols,
		cols,
		pgx.Identifier{temp}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		strings.Join(sets, ", "),
	)

	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "database: upsert: insert on conflict for %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

// dedupeRows collapses rows sharing a conflict key, since one INSERT ... ON
// CONFLICT statement cannot update the same target row twice. The last row
// for a key wins and keeps the position of the first.
func dedupeRows(cfg UpsertConfig, rows [][]any) ([][]any, error) {
	keyIdx := make([]int, len(cfg.ConflictKeys))
	for i, key := range cfg.ConflictKeys {
		keyIdx[i] = slices.Index(cfg.Columns, key)
		if keyIdx[i] < 0 {
			return nil, eris.Errorf("database: upsert: conflict key %q is not a column of %s", key, cfg.Table)
		}
	}

	seen := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		vals := make([]any, len(keyIdx))
		for i, idx := range keyIdx {
			vals[i] = row[idx]
		}
		key := fmt.Sprintf("%#v", vals)
		if pos, ok := seen[key]; ok {
			out[pos] = row
			continue
		}
		seen[key] = len(out)
		out = append(out, row)
	}
	return out, nil
}

// sanitizeTable quotes a table name, keeping an optional schema prefix.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

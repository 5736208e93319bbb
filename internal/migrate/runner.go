package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Runner 迁移执行器，脚本来自任意 fs.FS（通常为 embed.FS）
type Runner struct {
	FS fs.FS
}

// EnsureTable 保证 schema_migrations 表存在
func EnsureTable(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`)
	return err
}

// AppliedVersions 已应用版本
func AppliedVersions(ctx context.Context, db *pgxpool.Pool) (map[int64]bool, error) {
	rows, err := db.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		res[v] = true
	}
	return res, rows.Err()
}

type migrationFile struct {
	Version int64
	Path    string
}

// discoverUpMigrations 扫描 *_up.sql，前缀数字为版本，按版本排序
func discoverUpMigrations(fsys fs.FS) ([]migrationFile, error) {
	var files []migrationFile
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := path.Base(p)
		if !strings.HasSuffix(name, "_up.sql") {
			return nil
		}
		prefix, _, _ := strings.Cut(name, "_")
		ver, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil
		}
		files = append(files, migrationFile{Version: ver, Path: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// Pending 未应用的迁移，按版本升序
func (r Runner) Pending(applied map[int64]bool) ([]migrationFile, error) {
	if r.FS == nil {
		return nil, errors.New("migrations fs is nil")
	}
	ups, err := discoverUpMigrations(r.FS)
	if err != nil {
		return nil, err
	}
	out := ups[:0]
	for _, m := range ups {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out, nil
}

// Up 逐个在事务中执行未应用的向上迁移，返回本次执行的数量
func (r Runner) Up(ctx context.Context, db *pgxpool.Pool) (int, error) {
	if err := EnsureTable(ctx, db); err != nil {
		return 0, err
	}
	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}
	pending, err := r.Pending(applied)
	if err != nil {
		return 0, err
	}
	for i, m := range pending {
		content, err := fs.ReadFile(r.FS, m.Path)
		if err != nil {
			return i, err
		}
		tx, err := db.Begin(ctx)
		if err != nil {
			return i, err
		}
		_, execErr := tx.Exec(ctx, string(content))
		if execErr == nil {
			_, execErr = tx.Exec(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES($1,$2)`, m.Version, time.Now())
		}
		if execErr != nil {
			_ = tx.Rollback(ctx)
			return i, fmt.Errorf("migration %d: %w", m.Version, execErr)
		}
		if err := tx.Commit(ctx); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

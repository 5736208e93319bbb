package pg

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taoyao-code/obci-gateway/internal/protocol/obci"
)

// Migrations 内嵌的建表脚本，交给 migrate.Runner 执行
//
//go:embed migrations/*.sql
var Migrations embed.FS

// execer pgxpool.Pool 与 pgx.Tx 都满足
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// GapRepo 丢包记录
type GapRepo struct {
	db  execer
	now func() time.Time
}

func NewGapRepo(db execer) *GapRepo {
	return &GapRepo{db: db, now: time.Now}
}

// Insert 写入一次序号不连续
func (r *GapRepo) Insert(ctx context.Context, streamID string, transport obci.Transport, g obci.Gap) error {
	const q = `INSERT INTO stream_gaps (stream_id, transport, previous_no, current_no, missing, dropped, detected_at)
               VALUES ($1,$2,$3,$4,$5,$6,$7)`
	missing := make([]int16, len(g.Missing))
	for i, n := range g.Missing {
		missing[i] = int16(n)
	}
	_, err := r.db.Exec(ctx, q, streamID, string(transport), int16(g.Previous), int16(g.Current), missing, len(g.Missing), r.now())
	if err != nil {
		return fmt.Errorf("insert stream gap: %w", err)
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"memo-rag/internal/config"
	"memo-rag/internal/models"
)

// MemoTurn is one archived transcript message.
type MemoTurn struct {
	bun.BaseModel `bun:"table:memo_turns,alias:t"`
	ID            int64     `bun:"id,pk,autoincrement"`
	SessionID     string    `bun:"session_id,notnull"`
	Role          string    `bun:"role,notnull"`
	Content       string    `bun:"content,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*MemoTurn)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Archive keeps a write only copy of every transcript in Postgres.
type Archive struct {
	db *bun.DB
}

// OpenArchive connects, pings and creates the memo_turns table.
func OpenArchive(ctx context.Context, cfg *config.DatabaseConfig) (*Archive, error) {
	db := NewDB(ConnectDB(cfg), cfg.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msg("Transcript archive ready")
	return NewArchive(db), nil
}

// NewArchive wraps an already configured bun.DB.
func NewArchive(db *bun.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) ArchiveTurns(ctx context.Context, sessionID string, turns []models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	rows := TurnRows(sessionID, turns)
	_, err := a.db.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// TurnRows converts transcript turns into table rows.
func TurnRows(sessionID string, turns []models.Turn) []MemoTurn {
	rows := make([]MemoTurn, len(turns))
	for i, t := range turns {
		rows[i] = MemoTurn{SessionID: sessionID, Role: t.Role, Content: t.Content}
	}
	return rows
}

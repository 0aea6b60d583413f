package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const createSnapshots = `
CREATE TABLE IF NOT EXISTS wizard_snapshots (
    name       TEXT PRIMARY KEY,
    owner      TEXT NOT NULL DEFAULT '',
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Tables created before snapshots were owner scoped lack the column.
const addSnapshotOwner = `ALTER TABLE wizard_snapshots ADD COLUMN IF NOT EXISTS owner TEXT NOT NULL DEFAULT ''`

const insertSnapshot = `
INSERT INTO wizard_snapshots (name, owner, data)
VALUES ($1, $2, $3)`

const selectSnapshot = `SELECT data FROM wizard_snapshots WHERE name = $1 AND owner = $2`

// DBTX is the subset of pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SnapshotStore keeps snapshots in Postgres under the same names the file
// store uses, each row tagged with the session that saved it. It implements
// wizard.SnapshotStore.
type SnapshotStore struct {
	pool DBTX
}

func NewSnapshotStore(db DBTX) *SnapshotStore { return &SnapshotStore{pool: db} }

func (s *SnapshotStore) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createSnapshots, addSnapshotOwner} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate wizard_snapshots: %w", err)
		}
	}
	return nil
}

func (s *SnapshotStore) Save(ctx context.Context, owner string, snap wizard.Snapshot) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("%w: empty owner", wizard.ErrInvalidName)
	}
	if snap.Timestamp == "" {
		snap.Timestamp = time.Now().Format(wizard.TimestampLayout)
	}
	if snap.UserData == nil {
		snap.UserData = wizard.NewProfile()
	}
	if snap.ConversationHistory == nil {
		snap.ConversationHistory = []wizard.Message{}
	}
	name := wizard.SnapshotName(snap.Timestamp)

	if _, err := s.pool.Exec(ctx, insertSnapshot, name, owner, snap); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return name, nil
}

func (s *SnapshotStore) Load(ctx context.Context, owner, name string) (wizard.Snapshot, error) {
	if !wizard.ValidName(name) {
		return wizard.Snapshot{}, fmt.Errorf("%w: %q", wizard.ErrInvalidName, name)
	}
	if owner == "" {
		return wizard.Snapshot{}, fmt.Errorf("%w: %s", wizard.ErrSnapshotNotFound, name)
	}

	var data []byte
	err := s.pool.QueryRow(ctx, selectSnapshot, name, owner).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return wizard.Snapshot{}, fmt.Errorf("%w: %s", wizard.ErrSnapshotNotFound, name)
	}
	if err != nil {
		return wizard.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return wizard.DecodeSnapshot(data)
}

package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/l1jgo/vision/internal/fog"
)

// FogRepo stores one exploration record per scene. It implements fog.Store.
type FogRepo struct {
	db  *DB
	log *zap.Logger
}

func NewFogRepo(db *DB) *FogRepo {
	log := db.log
	if log == nil {
		log = zap.NewNop()
	}
	return &FogRepo{db: db, log: log.Named("fog-repo")}
}

var _ fog.Store = (*FogRepo)(nil)

// Checksum fingerprints a record's image and positions. Map keys are sorted
// by the JSON encoder, so equal records hash equally.
func Checksum(rec *fog.Record) ([]byte, error) {
	positions, err := json.Marshal(rec.Positions)
	if err != nil {
		return nil, fmt.Errorf("checksum positions: %w", err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	h.Write(rec.Image)
	h.Write(positions)
	return h.Sum(nil), nil
}

func (r *FogRepo) Load(ctx context.Context, sceneID string) (*fog.Record, error) {
	rec := &fog.Record{SceneID: sceneID}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT explored, positions, updated_at FROM fog_exploration WHERE scene_id = $1`, sceneID,
	).Scan(&rec.Image, &rec.Positions, &rec.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load fog %s: %w", sceneID, err)
	}
	return rec, nil
}

// Save upserts the record. A record whose checksum matches the stored one is
// not rewritten.
func (r *FogRepo) Save(ctx context.Context, rec *fog.Record) error {
	sum, err := Checksum(rec)
	if err != nil {
		return err
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO fog_exploration (scene_id, explored, positions, checksum, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (scene_id) DO UPDATE
		 SET explored = EXCLUDED.explored,
		     positions = EXCLUDED.positions,
		     checksum = EXCLUDED.checksum,
		     updated_at = EXCLUDED.updated_at
		 WHERE fog_exploration.checksum <> EXCLUDED.checksum`,
		rec.SceneID, rec.Image, rec.Positions, sum, ts,
	)
	if err != nil {
		return fmt.Errorf("save fog %s: %w", rec.SceneID, err)
	}
	if tag.RowsAffected() == 0 {
		r.log.Debug("fog unchanged, write skipped", zap.String("scene", rec.SceneID))
	}
	return nil
}

// Delete 刪除場景的探索紀錄，並寫入 fog_reset_log。
func (r *FogRepo) Delete(ctx context.Context, sceneID string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("fog reset begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx,
		`DELETE FROM fog_exploration WHERE scene_id = $1
		 RETURNING (SELECT count(*) FROM jsonb_object_keys(positions))`, sceneID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fog reset delete: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO fog_reset_log (scene_id, positions) VALUES ($1, $2)`, sceneID, count,
	); err != nil {
		return fmt.Errorf("fog reset log: %w", err)
	}
	return tx.Commit(ctx)
}

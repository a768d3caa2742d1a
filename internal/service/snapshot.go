package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/joeblew999/plat-geoview/internal/logger"
)

// SnapshotService copies ready sessions into DuckDB so they can be
// inspected with SQL. Each layer keeps only its latest snapshot.
type SnapshotService struct {
	db      *sql.DB
	log     *slog.Logger
	timeout time.Duration
}

// NewSnapshotService creates a snapshot writer over an opened database.
func NewSnapshotService(db *sql.DB, log *slog.Logger) *SnapshotService {
	return &SnapshotService{db: db, log: logger.Or(log), timeout: 5 * time.Minute}
}

// Attach saves every session that becomes ready.
func (s *SnapshotService) Attach(sessions *SessionService) {
	sessions.OnFinish(func(sess Session) {
		if sess.Status != StatusReady {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Save(ctx, sess); err != nil {
			s.log.Error("failed to snapshot session", "session", sess.ID, "layer", sess.LayerID, "err", err)
		}
	})
}

// Save replaces the layer's snapshot with the session's features.
func (s *SnapshotService) Save(ctx context.Context, sess Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM features WHERE layer_id = ?", sess.LayerID); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features
		(session_id, layer_id, type_name, seq, feature_id, properties, geometry_wkt)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range sess.Features {
		var id sql.NullString
		if f.ID != nil {
			id = sql.NullString{String: fmt.Sprint(f.ID), Valid: true}
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("encoding properties of feature %d: %w", i, err)
		}
		var geom sql.NullString
		if f.Geometry != nil {
			geom = sql.NullString{String: wkt.MarshalString(f.Geometry), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, sess.ID, sess.LayerID, sess.TypeName, i, id, string(props), geom); err != nil {
			return fmt.Errorf("inserting feature %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	s.log.Info("snapshot saved", "layer", sess.LayerID, "session", sess.ID, "features", len(sess.Features))
	return nil
}

// Count returns the number of stored features for a layer.
func (s *SnapshotService) Count(ctx context.Context, layerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM features WHERE layer_id = ?", layerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting snapshot: %w", err)
	}
	return n, nil
}

// Package sqlite provides a SQLite-backed implementation of the run repository port.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/ports"
)

// Adapter implements the run repository port for SQLite
type Adapter struct {
	db *sql.DB
}

var _ ports.RunRepository = (*Adapter)(nil)

// NewAdapter creates a connection and runs the schema migration.
// ":memory:" gives a private in-process database.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// One connection: every :memory: connection is a separate database,
	// and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Create stores a new run with its playlist snapshot, tracks and features.
func (a *Adapter) Create(ctx context.Context, rec ports.RunRecord) error {
	if rec.Accumulator == nil {
		return fmt.Errorf("run %s has no accumulator", rec.ID)
	}
	if len(rec.Features) != len(rec.Tracks) {
		return fmt.Errorf("run %s: %d features for %d tracks", rec.ID, len(rec.Features), len(rec.Tracks))
	}

	info, err := json.Marshal(rec.Playlist.Info)
	if err != nil {
		return fmt.Errorf("failed to encode playlist info: %w", err)
	}
	acc, err := json.Marshal(rec.Accumulator)
	if err != nil {
		return fmt.Errorf("failed to encode accumulator: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, playlist_id, playlist_info, state, labeled_count, accumulator)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Playlist.Info.ID, string(info), string(rec.Accumulator.State), len(rec.Accumulator.Labeled), string(acc)); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmtItem, err := tx.PrepareContext(ctx, `INSERT INTO run_items (run_id, position, raw) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmtItem.Close()
	for i, raw := range rec.Playlist.Items {
		if _, err := stmtItem.ExecContext(ctx, rec.ID, i, string(raw)); err != nil {
			return fmt.Errorf("failed to save playlist item %d: %w", i, err)
		}
	}

	// Each run keeps its own snapshot of track metadata and features, so a
	// later run never rewrites what an earlier one exported.
	stmtTrack, err := tx.PrepareContext(ctx, `
		INSERT INTO run_tracks (
			run_id, position, track_id, name, album, artists, disc_number,
			track_number, duration_ms, popularity, uri, href
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmtTrack.Close()

	stmtFeatures, err := tx.PrepareContext(ctx, `
		INSERT INTO run_features (
			run_id, track_id, danceability, energy, musical_key, loudness, mode,
			speechiness, acousticness, instrumentalness, liveness, valence, tempo,
			type, uri, track_href, analysis_url, duration_ms, time_signature
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, track_id) DO UPDATE SET
			danceability=excluded.danceability,
			energy=excluded.energy,
			musical_key=excluded.musical_key,
			loudness=excluded.loudness,
			mode=excluded.mode,
			speechiness=excluded.speechiness,
			acousticness=excluded.acousticness,
			instrumentalness=excluded.instrumentalness,
			liveness=excluded.liveness,
			valence=excluded.valence,
			tempo=excluded.tempo,
			type=excluded.type,
			uri=excluded.uri,
			track_href=excluded.track_href,
			analysis_url=excluded.analysis_url,
			duration_ms=excluded.duration_ms,
			time_signature=excluded.time_signature;
	`)
	if err != nil {
		return err
	}
	defer stmtFeatures.Close()

	for i, t := range rec.Tracks {
		artists, err := json.Marshal(t.Artists)
		if err != nil {
			return fmt.Errorf("failed to encode artists of %s: %w", t.ID, err)
		}
		if _, err := stmtTrack.ExecContext(ctx,
			rec.ID, i, t.ID, t.Name, t.Album, string(artists), t.DiscNumber,
			t.TrackNumber, t.DurationMs, t.Popularity, t.URI, t.Href,
		); err != nil {
			return fmt.Errorf("failed to save track %s: %w", t.ID, err)
		}

		f := rec.Features[i]
		if f == nil {
			continue
		}
		if _, err := stmtFeatures.ExecContext(ctx,
			rec.ID, t.ID, f.Danceability, f.Energy, f.Key, f.Loudness, f.Mode,
			f.Speechiness, f.Acousticness, f.Instrumentalness, f.Liveness, f.Valence,
			f.Tempo, f.Type, f.URI, f.TrackHref, f.AnalysisURL, f.DurationMs, f.TimeSignature,
		); err != nil {
			return fmt.Errorf("failed to save features of %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// Get loads a run. The dataset is rebuilt from the stored tracks and
// features.
func (a *Adapter) Get(ctx context.Context, id string) (ports.RunRecord, error) {
	var info, acc string
	row := a.db.QueryRowContext(ctx, "SELECT playlist_info, accumulator FROM runs WHERE id = ?", id)
	if err := row.Scan(&info, &acc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.RunRecord{}, domain.ErrNotFound
		}
		return ports.RunRecord{}, fmt.Errorf("failed to load run: %w", err)
	}

	rec := ports.RunRecord{ID: id}
	if err := json.Unmarshal([]byte(info), &rec.Playlist.Info); err != nil {
		return ports.RunRecord{}, fmt.Errorf("failed to decode playlist info: %w", err)
	}
	rec.Accumulator = &domain.Accumulator{}
	if err := json.Unmarshal([]byte(acc), rec.Accumulator); err != nil {
		return ports.RunRecord{}, fmt.Errorf("failed to decode accumulator: %w", err)
	}

	items, err := a.loadItems(ctx, id)
	if err != nil {
		return ports.RunRecord{}, err
	}
	rec.Playlist.Items = items

	rec.Tracks, rec.Features, err = a.loadTracks(ctx, id)
	if err != nil {
		return ports.RunRecord{}, err
	}
	rec.Dataset = domain.MergeTrackAndFeatures(rec.Tracks, rec.Features)
	return rec, nil
}

func (a *Adapter) loadItems(ctx context.Context, id string) ([]domain.RawItem, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT raw FROM run_items WHERE run_id = ? ORDER BY position ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist items: %w", err)
	}
	defer rows.Close()

	items := []domain.RawItem{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan playlist item: %w", err)
		}
		items = append(items, domain.RawItem(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlist items: %w", err)
	}
	return items, nil
}

func (a *Adapter) loadTracks(ctx context.Context, id string) ([]domain.TrackRecord, []*domain.AudioFeatureRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT rt.track_id, rt.name, rt.album, rt.artists, rt.disc_number, rt.track_number,
			rt.duration_ms, rt.popularity, rt.uri, rt.href, f.track_id IS NOT NULL,
			IFNULL(f.danceability, 0), IFNULL(f.energy, 0), IFNULL(f.musical_key, 0),
			IFNULL(f.loudness, 0), IFNULL(f.mode, 0), IFNULL(f.speechiness, 0),
			IFNULL(f.acousticness, 0), IFNULL(f.instrumentalness, 0), IFNULL(f.liveness, 0),
			IFNULL(f.valence, 0), IFNULL(f.tempo, 0), IFNULL(f.type, ''), IFNULL(f.uri, ''),
			IFNULL(f.track_href, ''), IFNULL(f.analysis_url, ''), IFNULL(f.duration_ms, 0),
			IFNULL(f.time_signature, 0)
		FROM run_tracks rt
		LEFT JOIN run_features f ON f.run_id = rt.run_id AND f.track_id = rt.track_id
		WHERE rt.run_id = ?
		ORDER BY rt.position ASC
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load run tracks: %w", err)
	}
	defer rows.Close()

	tracks := []domain.TrackRecord{}
	features := []*domain.AudioFeatureRecord{}
	for rows.Next() {
		var (
			t           domain.TrackRecord
			f           domain.AudioFeatureRecord
			artists     string
			hasFeatures bool
		)
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Album, &artists, &t.DiscNumber, &t.TrackNumber,
			&t.DurationMs, &t.Popularity, &t.URI, &t.Href, &hasFeatures,
			&f.Danceability, &f.Energy, &f.Key,
			&f.Loudness, &f.Mode, &f.Speechiness,
			&f.Acousticness, &f.Instrumentalness, &f.Liveness,
			&f.Valence, &f.Tempo, &f.Type, &f.URI,
			&f.TrackHref, &f.AnalysisURL, &f.DurationMs,
			&f.TimeSignature,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan run track: %w", err)
		}
		if err := json.Unmarshal([]byte(artists), &t.Artists); err != nil {
			return nil, nil, fmt.Errorf("failed to decode artists of %s: %w", t.ID, err)
		}
		tracks = append(tracks, t)
		if hasFeatures {
			f.ID = t.ID
			features = append(features, &f)
		} else {
			features = append(features, nil)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate run tracks: %w", err)
	}
	return tracks, features, nil
}

// SaveAccumulator replaces the labeling state of a run.
func (a *Adapter) SaveAccumulator(ctx context.Context, id string, acc *domain.Accumulator) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to encode accumulator: %w", err)
	}
	res, err := a.db.ExecContext(ctx, `
		UPDATE runs
		SET accumulator = ?, state = ?, labeled_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(data), string(acc.State), len(acc.Labeled), id)
	if err != nil {
		return fmt.Errorf("failed to save accumulator: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save accumulator: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns run ids in creation order.
func (a *Adapter) List(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT id FROM runs ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (a *Adapter) migrate() error {
	query := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		playlist_id TEXT NOT NULL,
		playlist_info TEXT NOT NULL,
		state TEXT NOT NULL,
		labeled_count INTEGER NOT NULL DEFAULT 0,
		accumulator TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS run_items (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		raw TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_tracks (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		track_id TEXT NOT NULL,
		name TEXT NOT NULL,
		album TEXT NOT NULL,
		artists TEXT NOT NULL,
		disc_number INTEGER NOT NULL,
		track_number INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		popularity INTEGER NOT NULL,
		uri TEXT NOT NULL,
		href TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_features (
		run_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		danceability REAL,
		energy REAL,
		musical_key INTEGER,
		loudness REAL,
		mode INTEGER,
		speechiness REAL,
		acousticness REAL,
		instrumentalness REAL,
		liveness REAL,
		valence REAL,
		tempo REAL,
		type TEXT,
		uri TEXT,
		track_href TEXT,
		analysis_url TEXT,
		duration_ms INTEGER,
		time_signature INTEGER,
		PRIMARY KEY (run_id, track_id),
		FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	_, err := a.db.Exec(query)
	return err
}

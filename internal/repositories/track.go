package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/shared"
)

// TrackRepository implements models.Repository[*models.CachedTrack] for the track cache.
//
// Tracks are written through on every pool build so later games against the
// same source can be seeded without hitting the catalog.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.CachedTrack] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.CachedTrack) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO tracks (id, sequence, service, service_id, source, title, artist, artist_id, album, year, duration_ms, popularity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		track.Service(),
		track.ServiceID(),
		track.Source(),
		track.Title(),
		track.Artist(),
		track.ArtistID(),
		track.Album(),
		track.Year(),
		track.DurationMS(),
		track.Popularity(),
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, source, title, artist, artist_id, album, year, duration_ms, popularity, created_at, updated_at, deleted_at
		FROM tracks
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByServiceID retrieves a track by service and service_id
func (r *TrackRepository) GetByServiceID(service, serviceID string) (*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, source, title, artist, artist_id, album, year, duration_ms, popularity, created_at, updated_at, deleted_at
		FROM tracks
		WHERE service = ? AND service_id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, service, serviceID))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.CachedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	query := `
		UPDATE tracks
		SET source = ?, title = ?, artist = ?, artist_id = ?, album = ?, year = ?, duration_ms = ?, popularity = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		track.Source(),
		track.Title(),
		track.Artist(),
		track.ArtistID(),
		track.Album(),
		track.Year(),
		track.DurationMS(),
		track.Popularity(),
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", track.ID())
	}

	return nil
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all tracks matching the given criteria, excluding soft-deleted tracks
func (r *TrackRepository) List(criteria map[string]any) ([]*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, source, title, artist, artist_id, album, year, duration_ms, popularity, created_at, updated_at, deleted_at
		FROM tracks
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if service, ok := criteria["service"].(string); ok && service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.CachedTrack
	for rows.Next() {
		track, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// Count returns the number of live rows in the cache.
func (r *TrackRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM tracks WHERE deleted_at IS NULL").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

// CountBySource returns the number of live rows grouped by the source spec
// that fetched them.
func (r *TrackRepository) CountBySource() (map[string]int, error) {
	rows, err := r.db.Query("SELECT source, COUNT(*) FROM tracks WHERE deleted_at IS NULL GROUP BY source ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("failed to count tracks by source: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		counts[source] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

// Clear hard-deletes every cached track and resets the sequence counter.
// Returns the number of rows removed.
func (r *TrackRepository) Clear() (int, error) {
	result, err := r.db.Exec("DELETE FROM tracks")
	if err != nil {
		return 0, fmt.Errorf("failed to clear tracks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if _, err := r.db.Exec("UPDATE tracks_sequence SET value = 0 WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("failed to reset sequence: %w", err)
	}

	return int(rows), nil
}

// scanOne scans a single [sql.Row] into a [models.CachedTrack]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.CachedTrack, error) {
	var (
		id         string
		sequence   int
		service    string
		serviceID  string
		source     string
		title      string
		artist     string
		artistID   string
		album      string
		year       int
		durationMS int
		popularity int
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &service, &serviceID, &source, &title, &artist, &artistID, &album, &year, &durationMS, &popularity, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	dto := models.Track{
		ID:         serviceID,
		Title:      title,
		Artist:     artist,
		ArtistID:   artistID,
		Album:      album,
		Year:       year,
		DurationMS: durationMS,
		Popularity: popularity,
	}

	track := models.NewCachedTrack(sequence, service, serviceID, source, dto)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}

// scanRow scans a row from [sql.Rows] into a [models.CachedTrack]
func (r *TrackRepository) scanRow(rows *sql.Rows) (*models.CachedTrack, error) {
	var (
		id         string
		sequence   int
		service    string
		serviceID  string
		source     string
		title      string
		artist     string
		artistID   string
		album      string
		year       int
		durationMS int
		popularity int
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &service, &serviceID, &source, &title, &artist, &artistID, &album, &year, &durationMS, &popularity, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	dto := models.Track{
		ID:         serviceID,
		Title:      title,
		Artist:     artist,
		ArtistID:   artistID,
		Album:      album,
		Year:       year,
		DurationMS: durationMS,
		Popularity: popularity,
	}

	track := models.NewCachedTrack(sequence, service, serviceID, source, dto)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}

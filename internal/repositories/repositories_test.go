package repositories

import (
	"database/sql"
	"testing"

	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// sampleTrack builds a cached track carrying the given service ID.
func sampleTrack(serviceID, title string) *models.CachedTrack {
	return models.NewCachedTrack(0, "spotify", serviceID, "artist:Test Artist", models.Track{
		ID:         serviceID,
		Title:      title,
		Artist:     "Test Artist",
		ArtistID:   "artist_1",
		Album:      "Test Album",
		Year:       2001,
		DurationMS: 180000,
		Popularity: 70,
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	first, err := NextSequence(db, "tracks")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}
	second, err := NextSequence(db, "tracks")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	if second != first+1 {
		t.Errorf("expected sequence to increment, got %d then %d", first, second)
	}
}

func TestTrackRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := sampleTrack("spotify123", "Test Song")

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		if track.ID() == "" {
			t.Error("track ID should be set after creation")
		}
	})

	t.Run("Create Rejects Invalid Track", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := models.NewCachedTrack(0, "spotify", "spotify123", "artist:Test", models.Track{ID: "spotify123"})

		err := repo.Create(track)
		if err == nil {
			t.Fatal("expected validation error for missing title")
		}
	})

	t.Run("Create Enforces Service Uniqueness", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		if err := repo.Create(sampleTrack("spotify123", "Test Song")); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		err := repo.Create(sampleTrack("spotify123", "Same Song Again"))
		if err == nil {
			t.Fatal("expected UNIQUE constraint error for duplicate service ID")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := sampleTrack("spotify123", "Test Song")

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		retrieved, err := repo.Get(track.ID())
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}

		if retrieved.Title() != "Test Song" {
			t.Errorf("expected title 'Test Song', got %s", retrieved.Title())
		}
		if retrieved.Year() != 2001 {
			t.Errorf("expected year 2001, got %d", retrieved.Year())
		}
		if retrieved.Source() != "artist:Test Artist" {
			t.Errorf("expected source tag to round trip, got %s", retrieved.Source())
		}
	})

	t.Run("Get Missing Track", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		if _, err := repo.Get("nonexistent"); err == nil {
			t.Fatal("expected error for missing track")
		}
	})

	t.Run("GetByServiceID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := sampleTrack("spotify123", "Test Song")

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		retrieved, err := repo.GetByServiceID("spotify", "spotify123")
		if err != nil {
			t.Fatalf("failed to get track by service ID: %v", err)
		}

		if retrieved.ServiceID() != "spotify123" {
			t.Errorf("expected service ID 'spotify123', got %s", retrieved.ServiceID())
		}
		if retrieved.Artist() != "Test Artist" {
			t.Errorf("expected artist 'Test Artist', got %s", retrieved.Artist())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := sampleTrack("spotify123", "Test Song")

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		track.SetSource("playlist:Road Trip")
		if err := repo.Update(track); err != nil {
			t.Fatalf("failed to update track: %v", err)
		}

		retrieved, err := repo.Get(track.ID())
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		if retrieved.Source() != "playlist:Road Trip" {
			t.Errorf("expected updated source, got %s", retrieved.Source())
		}
	})

	t.Run("Update Missing Track", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := sampleTrack("spotify123", "Test Song")
		track.SetID("nonexistent")

		if err := repo.Update(track); err == nil {
			t.Fatal("expected error for missing track")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := sampleTrack("spotify123", "Test Song")

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		if err := repo.Delete(track.ID()); err != nil {
			t.Fatalf("failed to delete track: %v", err)
		}

		if _, err := repo.Get(track.ID()); err == nil {
			t.Error("expected soft-deleted track to be excluded from Get")
		}

		if err := repo.Delete(track.ID()); err == nil {
			t.Error("expected error when deleting an already deleted track")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		first := sampleTrack("spotify123", "First Song")
		second := sampleTrack("spotify456", "Second Song")
		if err := repo.Create(first); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		if err := repo.Create(second); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		tracks, err := repo.List(map[string]any{"service": "spotify"})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].Title() != "First Song" {
			t.Errorf("expected sequence order, got %s first", tracks[0].Title())
		}
	})

	t.Run("List Filters By Source", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		artistTrack := sampleTrack("spotify123", "Artist Song")
		if err := repo.Create(artistTrack); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		playlistTrack := sampleTrack("spotify456", "Playlist Song")
		playlistTrack.SetSource("playlist:Road Trip")
		if err := repo.Create(playlistTrack); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		tracks, err := repo.List(map[string]any{"source": "playlist:Road Trip"})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 1 || tracks[0].Title() != "Playlist Song" {
			t.Errorf("expected only the playlist-sourced track, got %d tracks", len(tracks))
		}
	})

	t.Run("Count And CountBySource", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		if err := repo.Create(sampleTrack("spotify123", "First Song")); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		other := sampleTrack("spotify456", "Second Song")
		other.SetSource("genre:synthpop")
		if err := repo.Create(other); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatalf("failed to count tracks: %v", err)
		}
		if count != 2 {
			t.Errorf("expected count 2, got %d", count)
		}

		bySource, err := repo.CountBySource()
		if err != nil {
			t.Fatalf("failed to count by source: %v", err)
		}
		if bySource["artist:Test Artist"] != 1 || bySource["genre:synthpop"] != 1 {
			t.Errorf("unexpected source counts: %v", bySource)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		if err := repo.Create(sampleTrack("spotify123", "First Song")); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		if err := repo.Create(sampleTrack("spotify456", "Second Song")); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		removed, err := repo.Clear()
		if err != nil {
			t.Fatalf("failed to clear cache: %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 rows removed, got %d", removed)
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatalf("failed to count tracks: %v", err)
		}
		if count != 0 {
			t.Errorf("expected empty cache, got %d rows", count)
		}

		// Sequence restarts after a clear.
		seq, err := NextSequence(db, "tracks")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if seq != 1 {
			t.Errorf("expected sequence reset to restart at 1, got %d", seq)
		}
	})
}

func TestCacheAdapter(t *testing.T) {
	t.Run("CacheTracks Deduplicates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		adapter := NewCacheAdapter(repo, "spotify")

		tracks := []models.Track{
			{ID: "spotify123", Title: "Test Song", Artist: "Test Artist"},
			{ID: "spotify456", Title: "Other Song", Artist: "Test Artist"},
		}

		cached, err := adapter.CacheTracks("artist:Test Artist", tracks)
		if err != nil {
			t.Fatalf("failed to cache tracks: %v", err)
		}
		if cached != 2 {
			t.Errorf("expected 2 tracks cached, got %d", cached)
		}

		cached, err = adapter.CacheTracks("artist:Test Artist", tracks)
		if err != nil {
			t.Fatalf("caching duplicates should not error: %v", err)
		}
		if cached != 0 {
			t.Errorf("expected 0 new rows on second pass, got %d", cached)
		}

		retrieved, err := repo.GetByServiceID("spotify", "spotify123")
		if err != nil {
			t.Fatalf("failed to retrieve cached track: %v", err)
		}
		if retrieved.Title() != "Test Song" {
			t.Errorf("expected title 'Test Song', got %s", retrieved.Title())
		}
	})

	t.Run("CachedTracks Round Trip", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		adapter := NewCacheAdapter(repo, "spotify")

		original := []models.Track{
			{ID: "spotify123", Title: "Test Song", Artist: "Test Artist", Year: 2001, DurationMS: 180000},
			{ID: "spotify456", Title: "Other Song", Artist: "Test Artist", Year: 1997, DurationMS: 200000},
		}

		if _, err := adapter.CacheTracks("artist:Test Artist", original); err != nil {
			t.Fatalf("failed to cache tracks: %v", err)
		}

		restored, err := adapter.CachedTracks("artist:Test Artist")
		if err != nil {
			t.Fatalf("failed to read cached tracks: %v", err)
		}
		if len(restored) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(restored))
		}
		if restored[0] != original[0] {
			t.Errorf("expected DTO round trip, got %+v", restored[0])
		}
	})

	t.Run("CachedTracks Unknown Source", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		adapter := NewCacheAdapter(NewTrackRepository(db), "spotify")

		tracks, err := adapter.CachedTracks("genre:nothing cached")
		if err != nil {
			t.Fatalf("expected no error for unknown source, got %v", err)
		}
		if len(tracks) != 0 {
			t.Errorf("expected no tracks, got %d", len(tracks))
		}
	})
}

// package models defines the data model for the blindspot track cache
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models in the track cache.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Track represents a playable song from a catalog. It doubles as the DTO
// exchanged with catalog services and the payload persisted to the cache.
type Track struct {
	ID         string
	Title      string
	Artist     string // primary artist display name
	ArtistID   string
	Album      string
	Year       int // release year, 0 when unknown
	DurationMS int
	Popularity int // 0-100, catalog-reported
}

// Duration returns the track length as a [time.Duration].
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// Artist represents a catalog artist
type Artist struct {
	ID     string
	Name   string
	Genres []string
}

// Playlist represents a music playlist from a catalog
type Playlist struct {
	ID          string
	Name        string
	Description string
	Owner       string
	TrackCount  int
	Public      bool
}

// Device represents a playback target registered with the catalog
type Device struct {
	ID         string
	Name       string
	Type       string
	Active     bool
	Restricted bool
	VolumePct  int
}

// CachedTrack is a catalog track persisted to the local cache, tagged with
// the source spec that fetched it (e.g. "artist:Daft Punk").
type CachedTrack struct {
	id        string
	sequence  int
	service   string
	serviceID string
	source    string
	track     Track
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewCachedTrack creates a CachedTrack from a catalog DTO.
//
// The database ID is assigned by the repository on Create.
func NewCachedTrack(sequence int, service, serviceID, source string, track Track) *CachedTrack {
	now := time.Now()
	return &CachedTrack{
		sequence:  sequence,
		service:   service,
		serviceID: serviceID,
		source:    source,
		track:     track,
		createdAt: now,
		updatedAt: now,
	}
}

func (t *CachedTrack) ID() string { return t.id }

func (t *CachedTrack) Sequence() int { return t.sequence }

func (t *CachedTrack) Service() string { return t.service }

func (t *CachedTrack) ServiceID() string { return t.serviceID }

func (t *CachedTrack) Source() string { return t.source }

func (t *CachedTrack) Title() string { return t.track.Title }

func (t *CachedTrack) Artist() string { return t.track.Artist }

func (t *CachedTrack) ArtistID() string { return t.track.ArtistID }

func (t *CachedTrack) Album() string { return t.track.Album }

func (t *CachedTrack) Year() int { return t.track.Year }

func (t *CachedTrack) DurationMS() int { return t.track.DurationMS }

func (t *CachedTrack) Popularity() int { return t.track.Popularity }

func (t *CachedTrack) CreatedAt() time.Time { return t.createdAt }

func (t *CachedTrack) UpdatedAt() time.Time { return t.updatedAt }

func (t *CachedTrack) DeletedAt() *time.Time { return t.deletedAt }

// Track returns the catalog DTO backing this cached row.
func (t *CachedTrack) Track() Track { return t.track }

func (t *CachedTrack) SetID(id string) { t.id = id }

func (t *CachedTrack) SetSource(source string) { t.source = source }

func (t *CachedTrack) SetUpdatedAt(ts time.Time) { t.updatedAt = ts }

func (t *CachedTrack) SetDeletedAt(ts *time.Time) { t.deletedAt = ts }

func (t *CachedTrack) SetCreatedAt(ts time.Time) { t.createdAt = ts }

// Validate checks the cached track carries the fields required for lookups.
func (t *CachedTrack) Validate() error {
	if t.service == "" {
		return fmt.Errorf("service is required")
	}
	if t.serviceID == "" {
		return fmt.Errorf("service ID is required")
	}
	if t.track.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/blindspot/internal/formatter"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/urfave/cli/v3"
)

// SourcesArtists searches for an artist and lists it with its related
// artists, the roster a pool seeded from that artist would draw on.
func (r *Runner) SourcesArtists(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: artist name required", shared.ErrMissingArgument)
	}

	if err := r.ensureCatalog(ctx, cmd); err != nil {
		return err
	}

	if cmd.Bool("pick") {
		choice, selected, err := r.pickArtist(ctx, query)
		if err != nil {
			return err
		}
		if !selected {
			return nil
		}
		return r.writePlain("Play it with: blindspot play --source \"artist:%s\"\n", choice)
	}

	var artists []models.Artist
	err := r.withReauth(ctx, func() error {
		seed, err := r.catalog.SearchArtist(ctx, query)
		if err != nil {
			return err
		}

		artists = []models.Artist{*seed}
		related, err := r.catalog.RelatedArtists(ctx, seed.ID)
		if err != nil {
			r.logger.Warnf("failed to fetch related artists %v", err)
			return nil
		}
		artists = append(artists, related...)
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrEmptyResult) {
			return fmt.Errorf("%w: no artist matching %q", err, query)
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(artists, true)
	}

	table, err := formatter.ArtistsTable(artists)
	if err != nil {
		return err
	}
	r.writePlain("%s", table)
	return r.writePlain("\nPlay one with: blindspot play --source \"artist:%s\"\n", artists[0].Name)
}

// SourcesGenres previews the tracks a genre source would seed a pool with.
func (r *Runner) SourcesGenres(ctx context.Context, cmd *cli.Command) error {
	genre := cmd.StringArg("genre")
	if genre == "" {
		return fmt.Errorf("%w: genre name required", shared.ErrMissingArgument)
	}
	limit := int(cmd.Int("limit"))

	if err := r.ensureCatalog(ctx, cmd); err != nil {
		return err
	}

	var tracks []models.Track
	err := r.withReauth(ctx, func() error {
		var fetchErr error
		tracks, fetchErr = r.catalog.GenreTracks(ctx, genre, limit)
		return fetchErr
	})
	if err != nil {
		if errors.Is(err, shared.ErrEmptyResult) {
			return fmt.Errorf("%w: no tracks tagged %q, genre names follow Spotify's catalog (e.g. synthpop, french house)", err, genre)
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	table, err := formatter.TracksTable(tracks)
	if err != nil {
		return err
	}
	r.writePlain("%s", table)
	return r.writePlain("\nPlay them with: blindspot play --source \"genre:%s\"\n", genre)
}

// SourcesPlaylists lists the authenticated user's playlists.
func (r *Runner) SourcesPlaylists(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureCatalog(ctx, cmd); err != nil {
		return err
	}

	if cmd.Bool("pick") {
		choice, selected, err := r.pickPlaylist(ctx)
		if err != nil {
			return err
		}
		if !selected {
			return nil
		}
		return r.writePlain("Play it with: blindspot play --source \"playlist:%s\"\n", choice)
	}

	var playlists []models.Playlist
	err := r.withReauth(ctx, func() error {
		var fetchErr error
		playlists, fetchErr = r.catalog.GetPlaylists(ctx)
		return fetchErr
	})
	if err != nil {
		return err
	}
	if len(playlists) == 0 {
		return r.writePlain("No playlists found.\n")
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	table, err := formatter.PlaylistsTable(playlists)
	if err != nil {
		return err
	}
	r.writePlain("%s", table)
	return r.writePlain("\nPlay one with: blindspot play --source \"playlist:%s\"\n", playlists[0].Name)
}

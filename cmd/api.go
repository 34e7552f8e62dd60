package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request to the Spotify Web API. Intended for
// debugging playback and catalog issues without leaving the CLI.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: request path required (e.g. /me/player/devices)", shared.ErrMissingArgument)
	}

	api := r.ensureAPI(cmd)

	r.logger.Info("GET request", "path", path)

	resp, err := api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return r.writeAPIResponse(resp)
}

// APIPost makes a direct POST request with a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: request path required", shared.ErrMissingArgument)
	}
	data := cmd.String("data")

	api := r.ensureAPI(cmd)

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	r.logger.Info("POST request", "path", path)

	resp, err := api.Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return r.writeAPIResponse(resp)
}

// APIPut makes a direct PUT request. Most of Spotify's player endpoints are
// PUTs, so --data may be empty.
func (r *Runner) APIPut(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: request path required (e.g. /me/player/pause)", shared.ErrMissingArgument)
	}
	data := cmd.String("data")

	api := r.ensureAPI(cmd)

	if data != "" {
		var jsonTest any
		if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
			return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
		}
	}

	r.logger.Info("PUT request", "path", path)

	resp, err := api.Put(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return r.writeAPIResponse(resp)
}

// writeAPIResponse prints a Spotify API response body. Error statuses still
// print the body; Spotify's error payloads carry the reason.
func (r *Runner) writeAPIResponse(resp *services.APIResponse) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.writePlain("Status: %d\n", resp.StatusCode)
	}

	if resp.IsJSON && resp.JSONData != nil {
		return r.writeJSON(resp.JSONData, true)
	}
	if len(resp.Body) == 0 {
		return r.writePlain("(empty response, status %d)\n", resp.StatusCode)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

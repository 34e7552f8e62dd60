package main

import (
	"context"

	"github.com/desertthunder/blindspot/internal/formatter"
	"github.com/desertthunder/blindspot/internal/models"
	"github.com/desertthunder/blindspot/internal/ui"
	"github.com/urfave/cli/v3"
)

// DevicesList shows the playback devices Spotify knows about and whether one
// is ready to receive snippets.
func (r *Runner) DevicesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureCatalog(ctx, cmd); err != nil {
		return err
	}

	var devices []models.Device
	err := r.withReauth(ctx, func() error {
		var fetchErr error
		devices, fetchErr = r.catalog.Devices(ctx)
		return fetchErr
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(devices, true)
	}

	if len(devices) == 0 {
		r.writePlainln("%s", ui.Warn("⚠ No devices found."))
		return r.writePlain("Open Spotify on a phone, desktop or web player so it registers a device.\n")
	}

	table, err := formatter.DevicesTable(devices)
	if err != nil {
		return err
	}
	r.writePlain("%s", table)

	for _, d := range devices {
		if d.Active {
			return nil
		}
	}
	r.writePlainln("%s", ui.Warn("⚠ No device is active."))
	return r.writePlain("Start playback on one of them before running blindspot play.\n")
}

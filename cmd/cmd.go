// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// authCommand handles the OAuth flow and token inspection
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify using OAuth2",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the stored token state and expiry",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Verify the token against the API",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// playCommand starts a game
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play a blind-test game",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Pool source as kind:query (artist:Daft Punk, genre:synthpop, playlist:Road Trip)",
			},
			&cli.StringFlag{
				Name:    "players",
				Aliases: []string{"p"},
				Usage:   "Comma-separated player names",
			},
			&cli.BoolFlag{
				Name:  "pick",
				Usage: "Choose the source from an interactive list",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Bypass the local track cache",
			},
		},
		Action: r.Play,
	}
}

// sourcesCommand searches and browses pool source candidates
func sourcesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Browse artists, genres and playlists to seed a game",
		Commands: []*cli.Command{
			{
				Name:  "artists",
				Usage: "Search an artist and list related candidates",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pick",
						Usage: "Choose from the list interactively",
					},
				},
				Action: r.SourcesArtists,
			},
			{
				Name:  "genres",
				Usage: "Preview tracks carrying a genre tag",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "genre",
					},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum tracks to preview",
						Value: 20,
					},
				},
				Action: r.SourcesGenres,
			},
			{
				Name:  "playlists",
				Usage: "List your playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pick",
						Usage: "Choose from the list interactively",
					},
				},
				Action: r.SourcesPlaylists,
			},
		},
	}
}

// devicesCommand lists Spotify Connect playback devices
func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "devices",
		Usage:  "List playback devices and flag the active one",
		Action: r.DevicesList,
	}
}

// cacheCommand inspects and clears the local track cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local track cache",
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "List cached tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Filter by source (kind:query)",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Export the listing to a CSV file",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "CSV base name (default derives from the source)",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "count",
				Usage:  "Count cached tracks per source",
				Action: r.CacheCount,
			},
			{
				Name:  "warm",
				Usage: "Build and cache pools for several sources in one pass",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Source as kind:query, repeatable",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent pool builds",
						Value: 3,
					},
				},
				Action: r.CacheWarm,
			},
			{
				Name:   "clear",
				Usage:  "Drop every cached track",
				Action: r.CacheClear,
			},
		},
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the default config file",
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the resolved configuration with secrets redacted",
				Action: r.ConfigShow,
			},
		},
	}
}

// apiCommand makes raw Spotify Web API calls for debugging
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Raw Spotify Web API calls for debugging",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a path and print the response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "POST a JSON body to a path",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "put",
				Usage: "PUT a JSON body to a path (player endpoints are PUTs)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON body to send",
					},
				},
				Action: r.APIPut,
			},
		},
	}
}

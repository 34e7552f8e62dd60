// Package game implements the blind-test engine: building shuffled song
// pools from a catalog source, running the escalating-snippet guessing
// round, and scoring a multi-round session.
//
// Core types:
//
//   - [Builder] - fetches candidate tracks for a source, deduplicates and
//     filters them, and shuffles the survivors into a [SongPool]
//   - [Round] - the guessing loop for one hidden track, driving playback
//     through the snippet ladder until someone names it or it escapes
//   - [Session] - plays rounds against a pool, rotates the starting
//     player, and keeps the scoreboard
//   - [Prompter] - collects answers from players at the table
//
// Rounds talk to the speaker through [services.Catalog] and to the table
// through [Prompter], so both sides swap out cleanly in tests. Losing the
// playback device suspends the round rather than killing it; the session
// holds the suspended state and picks up from the same turn once a device
// is back.
package game

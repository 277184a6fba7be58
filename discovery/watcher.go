// Package discovery locates session transcript files on disk.
//
// Transports announce a session id before the transcript file backing it
// is guaranteed to exist. Watcher bridges that gap: it blocks until
// <id>.jsonl appears under the transcript directory, using a filesystem
// watch rather than polling.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// transcriptExt is the suffix transports use for session transcripts.
const transcriptExt = ".jsonl"

// Watcher waits for session transcript files in a single directory. It is
// safe for concurrent use; each WaitForSession call owns its own
// filesystem watch.
type Watcher struct {
	dir string
	log zerolog.Logger
}

// NewWatcher creates a watcher over the given transcript directory.
func NewWatcher(dir string) *Watcher {
	return &Watcher{dir: dir, log: zerolog.Nop()}
}

// WithLogger returns a copy of the watcher that logs through l.
func (w *Watcher) WithLogger(l zerolog.Logger) *Watcher {
	out := *w
	out.log = l
	return &out
}

// Path returns the transcript path for a session id.
func (w *Watcher) Path(sessionID string) string {
	return filepath.Join(w.dir, sessionID+transcriptExt)
}

// WaitForSession blocks until the transcript for sessionID exists or ctx
// is done. A transcript that already exists returns immediately without
// establishing a watch.
func (w *Watcher) WaitForSession(ctx context.Context, sessionID string) error {
	if strings.ContainsAny(sessionID, `/\`) {
		return fmt.Errorf("invalid session id %q", sessionID)
	}
	target := w.Path(sessionID)

	if _, err := os.Stat(target); err == nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	// The file may have appeared between the first stat and the watch
	// registration.
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	w.log.Debug().Str("session_id", sessionID).Str("path", target).Msg("waiting for transcript")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watch on %s closed", w.dir)
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && ev.Name == target {
				w.log.Debug().Str("session_id", sessionID).Msg("transcript found")
				return nil
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watch on %s closed", w.dir)
			}
			w.log.Error().Err(err).Msg("transcript watch error")
		}
	}
}

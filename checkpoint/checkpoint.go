// Package checkpoint reads the on-disk checkpoint store that configures the
// semantic continuation overlay.
//
// The store is optional and read-only: a pointer file names the active
// checkpoint id, and a per-checkpoint JSON document carries its settings.
// A missing or malformed store disables the overlay; it is never an error.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Store layout, relative to the working directory.
const (
	storeDir    = ".drover"
	pointerFile = "active_checkpoint"
	docDir      = "checkpoints"
)

// Defaults applied to absent config fields.
const (
	DefaultMaxRetries       = 3
	DefaultBufferSize       = 5
	DefaultTimeoutMs        = 15000
	DefaultCompletionMarker = "[CHECKPOINT_COMPLETE]"
	DefaultContinueMessage  = "The checkpoint task does not appear to be complete yet. " +
		"Continue working on it, and include the completion marker in your response once it is genuinely done."
)

// Config is the smart-continue configuration carried by an active
// checkpoint. It is loaded once per session and treated as immutable.
type Config struct {
	Enabled          bool   `json:"enabled"`
	Model            string `json:"model,omitempty"`
	Provider         string `json:"provider,omitempty"`
	MaxRetries       int    `json:"max_retries,omitempty"`
	BufferSize       int    `json:"buffer_size,omitempty"`
	CompletionMarker string `json:"completion_marker,omitempty"`
	TimeoutMs        int    `json:"timeout_ms,omitempty"`
	ContinueMessage  string `json:"continue_message,omitempty"`
}

// WithDefaults returns a copy of c with zero-valued fields filled in from
// the package defaults.
func (c Config) WithDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.CompletionMarker == "" {
		c.CompletionMarker = DefaultCompletionMarker
	}
	if c.ContinueMessage == "" {
		c.ContinueMessage = DefaultContinueMessage
	}
	return c
}

// Store reads checkpoint configuration for one working directory.
type Store struct {
	root string
	log  zerolog.Logger
}

// NewStore creates a store rooted at the given working directory.
func NewStore(dir string) *Store {
	return &Store{root: dir, log: zerolog.Nop()}
}

// WithLogger returns a copy of the store that logs through l.
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	return &Store{root: s.root, log: l}
}

// Active returns the active checkpoint's config with defaults applied, or
// nil when no checkpoint is active. A malformed pointer or document is
// logged and reported as "no active checkpoint".
func (s *Store) Active() *Config {
	pointer := filepath.Join(s.root, storeDir, pointerFile)
	raw, err := os.ReadFile(pointer)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", pointer).Msg("checkpoint pointer unreadable")
		}
		return nil
	}

	id := strings.TrimSpace(string(raw))
	if id == "" || strings.ContainsAny(id, `/\`) {
		s.log.Warn().Str("path", pointer).Msg("checkpoint pointer malformed")
		return nil
	}

	doc := filepath.Join(s.root, storeDir, docDir, id+".json")
	data, err := os.ReadFile(doc)
	if err != nil {
		s.log.Warn().Err(err).Str("checkpoint", id).Msg("checkpoint document unreadable")
		return nil
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.log.Warn().Err(err).Str("checkpoint", id).Msg("checkpoint document malformed")
		return nil
	}

	cfg = cfg.WithDefaults()
	return &cfg
}

package sessionfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opencodereview/internal/review"
)

const baseName = ".opencodereview"

// PathFor returns the session file path for a subject inside the repo root.
//
// Naming convention:
//   - uncommitted, staged, branch: .opencodereview.{ext}
//   - commit: .opencodereview.<sha7>.{ext}
//   - pr: .opencodereview.pr-<number>.{ext}
func PathFor(repoRoot string, subject review.Subject, format Format) string {
	suffix := ""
	switch subject.SourceType() {
	case "commit":
		if subject.Ref != "" {
			suffix = "." + subject.ShortRef()
		}
	case "pr":
		if subject.Ref != "" {
			suffix = ".pr-" + subject.Ref
		}
	}
	return filepath.Join(repoRoot, fmt.Sprintf("%s%s.%s", baseName, suffix, format.Ext()))
}

// FormatForPath infers the encoding from the file extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// IsSessionFile reports whether the path looks like a session file this
// package owns.
func IsSessionFile(path string) bool {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, baseName+".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Store reads and writes one session file. Saves merge-on-write: activities
// appended to the file by other writers since our last load are folded into
// the session before it is serialized, so concurrent edits are never lost.
type Store struct {
	path   string
	format Format
	author review.Author
	now    func() time.Time
}

// NewStore builds a store for the subject's session file under repoRoot.
func NewStore(repoRoot string, subject review.Subject, format Format, author review.Author) *Store {
	return &Store{
		path:   PathFor(repoRoot, subject, format),
		format: format,
		author: author,
		now:    time.Now,
	}
}

// OpenStore builds a store for an existing session file path, inferring the
// format from the extension.
func OpenStore(path string, author review.Author) *Store {
	return &Store{
		path:   path,
		format: FormatForPath(path),
		author: author,
		now:    time.Now,
	}
}

// Path returns the session file path.
func (s *Store) Path() string { return s.path }

// Format returns the store's encoding.
func (s *Store) Format() Format { return s.format }

// Exists reports whether the session file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// ModTime returns the session file's current modification time.
func (s *Store) ModTime() (time.Time, error) {
	st, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, err
	}
	return st.ModTime(), nil
}

// Load reads and decodes the session file into a fresh session.
func (s *Store) Load() (*review.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	dec, err := Decode(s.path, data, s.format, s.now())
	if err != nil {
		return nil, err
	}
	return review.NewLoadedSession(dec.Subject, dec.Instructions, dec.Activities, s.author), nil
}

// MergeInto decodes the file and folds its activities into the session,
// returning how many were new. A missing file merges nothing.
func (s *Store) MergeInto(sess *review.Session) (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	dec, err := Decode(s.path, data, s.format, s.now())
	if err != nil {
		return 0, err
	}
	return sess.MergeActivities(dec.Activities), nil
}

// SaveResult reports what a save did.
type SaveResult struct {
	ModTime time.Time
	Merged  int
}

// Save refreshes the instructions preamble, folds in any activities written
// to the file since our load, and writes the session back. The returned
// modification time lets the caller suppress its own change notification.
// A structurally broken file on disk is overwritten rather than merged.
func (s *Store) Save(sess *review.Session) (SaveResult, error) {
	sess.SetInstructions(Instructions(s.format))

	merged := 0
	if data, err := os.ReadFile(s.path); err == nil {
		dec, derr := Decode(s.path, data, s.format, s.now())
		if derr != nil {
			log.Warn().Err(derr).Str("path", s.path).
				Msg("Session file unreadable, overwriting with in-memory state")
		} else {
			merged = sess.MergeActivities(dec.Activities)
		}
	}

	out, err := Encode(sess, s.format)
	if err != nil {
		return SaveResult{}, err
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return SaveResult{}, err
	}
	st, err := os.Stat(s.path)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{ModTime: st.ModTime(), Merged: merged}, nil
}

// Delete removes a session file.
func Delete(path string) error {
	return os.Remove(path)
}

// Info summarizes one session file for listings.
type Info struct {
	Path     string
	Format   Format
	Subject  review.Subject
	Comments int
	Updated  time.Time
}

// List finds and summarizes the session files directly under repoRoot.
// Files that no longer parse are skipped with a warning; they can still be
// removed by path.
func List(repoRoot string, author review.Author) ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(repoRoot, baseName+".*"))
	if err != nil {
		return nil, err
	}
	var infos []Info
	for _, path := range matches {
		if !IsSessionFile(path) {
			continue
		}
		st, err := os.Stat(path)
		if err != nil || st.IsDir() {
			continue
		}
		store := OpenStore(path, author)
		sess, err := store.Load()
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable session file")
			continue
		}
		infos = append(infos, Info{
			Path:     path,
			Format:   store.Format(),
			Subject:  sess.Subject(),
			Comments: sess.Views().TotalCommentCount(),
			Updated:  st.ModTime(),
		})
	}
	return infos, nil
}

package launcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Connection history for viperssh.
// Stores recent connections in a JSON file under the user's config dir:
//
//   ~/.config/viperssh/history.json
//
// On systems honoring XDG, $XDG_CONFIG_HOME is used instead of ~/.config.
//
// Semantics: unique by (target, proto), move-to-front on reconnect, capped.

const (
	defaultHistoryFilename = "history.json"

	// Default limits/caps
	defaultHistoryLimit = 50
)

// HistoryEntry is a single recorded connection.
type HistoryEntry struct {
	Target string `json:"target"`
	Proto  string `json:"proto,omitempty"` // "ssh" (default) or "sftp"
	TS     int64  `json:"ts"`
}

// History represents the on-disk JSON structure.
// Keep fields stable for backward compatibility.
type History struct {
	// Version allows future migrations.
	Version int `json:"version,omitempty"`

	// Entries stores a most-recently-used list of connections.
	// The first element is the most recent.
	Entries []HistoryEntry `json:"entries,omitempty"`

	// Updated tracks the last update time in RFC3339.
	Updated string `json:"updated,omitempty"`
}

// DefaultHistoryPath returns the full path to the history.json file.
func DefaultHistoryPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultHistoryFilename), nil
}

// LoadHistory reads the history JSON from path. If path is empty, the default
// path is used. A missing file is not an error; it yields an empty history.
func LoadHistory(path string) (*History, error) {
	if strings.TrimSpace(path) == "" {
		var err error
		path, err = DefaultHistoryPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &History{Version: 1}, nil
		}
		return nil, fmt.Errorf("read history %s: %w", path, err)
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	if h.Version == 0 {
		h.Version = 1
	}
	h.prune()
	return &h, nil
}

// SaveHistory writes the history JSON to path atomically.
// If path is empty, the default path is used.
// The parent directory is created with 0700 permissions if missing.
func SaveHistory(path string, h *History) error {
	if h == nil {
		return errors.New("nil history")
	}
	if strings.TrimSpace(path) == "" {
		var err error
		path, err = DefaultHistoryPath()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create history dir %s: %w", dir, err)
	}

	h2 := *h
	h2.Updated = time.Now().UTC().Format(time.RFC3339)
	h2.prune()
	payload, err := json.MarshalIndent(h2, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	payload = append(payload, '\n')

	tmp := path + fmt.Sprintf(".tmp-%d-%d", os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write temp history %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename to %s: %w", path, err)
	}
	return nil
}

// Add records a connection at the front of the list, removing any earlier
// entry for the same (target, proto). Returns true if the history changed.
func (h *History) Add(target, proto string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	proto = normalizeProto(proto)

	out := make([]HistoryEntry, 0, len(h.Entries)+1)
	out = append(out, HistoryEntry{Target: target, Proto: proto, TS: time.Now().Unix()})
	for _, e := range h.Entries {
		if e.Target == target && normalizeProto(e.Proto) == proto {
			continue
		}
		out = append(out, e)
	}
	if len(out) > defaultHistoryLimit {
		out = out[:defaultHistoryLimit]
	}
	h.Entries = out
	return true
}

// Remove deletes all entries for target (any proto). Returns true if modified.
func (h *History) Remove(target string) bool {
	target = strings.TrimSpace(target)
	if target == "" || len(h.Entries) == 0 {
		return false
	}
	out := h.Entries[:0]
	removed := false
	for _, e := range h.Entries {
		if e.Target == target {
			removed = true
			continue
		}
		out = append(out, e)
	}
	h.Entries = out
	return removed
}

// prune drops empty entries, de-duplicates by (target, proto) keeping the
// most recent, and caps the list.
func (h *History) prune() {
	if len(h.Entries) == 0 {
		return
	}
	type key struct{ target, proto string }
	seen := map[key]struct{}{}
	out := make([]HistoryEntry, 0, len(h.Entries))
	for _, e := range h.Entries {
		e.Target = strings.TrimSpace(e.Target)
		if e.Target == "" {
			continue
		}
		e.Proto = normalizeProto(e.Proto)
		k := key{e.Target, e.Proto}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	if len(out) > defaultHistoryLimit {
		out = out[:defaultHistoryLimit]
	}
	h.Entries = out
}

func normalizeProto(proto string) string {
	switch strings.ToLower(strings.TrimSpace(proto)) {
	case ProtoSFTP:
		return ProtoSFTP
	default:
		return ProtoSSH
	}
}

// RelativeTime renders a human-friendly age for a unix timestamp.
func RelativeTime(ts int64, now time.Time) string {
	delta := now.Unix() - ts
	switch {
	case delta < 60:
		return "just now"
	case delta < 3600:
		return fmt.Sprintf("%dm ago", delta/60)
	case delta < 86400:
		return fmt.Sprintf("%dh ago", delta/3600)
	default:
		return fmt.Sprintf("%dd ago", delta/86400)
	}
}

// Package zone classifies instance paths into policy zones. A path is
// either Managed (fully mirrored from the snapshot), ForceReset
// (restored to its shipped default on every run), or Untouched (never
// created, modified, or deleted by the updater).
package zone

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Class is the policy zone a path belongs to.
type Class int

// Path classes. Untouched is the safe default: anything the
// configuration does not explicitly claim is left alone.
const (
	Untouched Class = iota
	Managed
	ForceReset
)

// String returns the lowercase name of the class.
func (c Class) String() string {
	switch c {
	case Untouched:
		return "untouched"
	case Managed:
		return "managed"
	case ForceReset:
		return "force-reset"
	default:
		return "unknown"
	}
}

// ForceResetEntry names a file that is restored to its shipped default
// content unconditionally, even when the local copy is absent or
// unmodified. Its purpose is to undo hand-edits of critical config.
type ForceResetEntry struct {
	// Path is the destination, relative to the instance root.
	Path string `mapstructure:"path" json:"path"`

	// Source is the default content location relative to the snapshot
	// root. Empty means DefaultsDir/Path.
	Source string `mapstructure:"source" json:"source,omitempty"`

	// Dir marks the entry as a directory reset: every shipped file
	// under Source is restored to Path/<rel>. The source directory
	// must lie inside a managed zone of the snapshot so its files are
	// walked.
	Dir bool `mapstructure:"dir" json:"dir,omitempty"`
}

// Config is the validated zone table for a run. It is loaded once at
// startup and treated as immutable for the duration of the run.
type Config struct {
	// ManagedZones are top-level instance folders subject to full
	// mirroring. Zones never overlap: each is a single path element.
	ManagedZones []string `mapstructure:"managed_zones"`

	// ResetZones are additional top-level folders (or "." for the
	// instance root itself) where force-reset entries may land without
	// belonging to a managed zone. Nothing else is mirrored there.
	ResetZones []string `mapstructure:"reset_zones"`

	// ForceReset lists the files restored to defaults on every run.
	ForceReset []ForceResetEntry `mapstructure:"force_reset"`

	// DefaultsDir is the snapshot folder holding shipped default
	// content, used when a force-reset entry has no explicit source.
	DefaultsDir string `mapstructure:"defaults_dir"`
}

// Validation errors.
var (
	ErrEmptyZones    = errors.New("no managed zones configured")
	ErrBadZoneName   = errors.New("zone name must be a single path element")
	ErrDuplicateZone = errors.New("duplicate zone name")
	ErrResetOutside  = errors.New("force-reset path outside managed and reset zones")
)

// Validate checks the zone table for configuration mistakes. It is
// called once at load; a failure here is fatal and reported before any
// walking or execution.
func (c *Config) Validate() error {
	if len(c.ManagedZones) == 0 {
		return ErrEmptyZones
	}

	seen := make(map[string]struct{}, len(c.ManagedZones)+len(c.ResetZones))
	for _, z := range c.ManagedZones {
		if err := checkZoneName(z); err != nil {
			return err
		}
		if _, dup := seen[z]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateZone, z)
		}
		seen[z] = struct{}{}
	}
	for _, z := range c.ResetZones {
		if z != "." {
			if err := checkZoneName(z); err != nil {
				return err
			}
		}
		if _, dup := seen[z]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateZone, z)
		}
		seen[z] = struct{}{}
	}

	for _, e := range c.ForceReset {
		rel := Clean(e.Path)
		if rel == "" || hasTraversal(rel) {
			return fmt.Errorf("%w: %q", ErrResetOutside, e.Path)
		}
		if !c.inManagedZone(rel) && !c.inResetZone(rel) {
			return fmt.Errorf("%w: %q", ErrResetOutside, e.Path)
		}
	}

	return nil
}

// checkZoneName rejects zone names that are not a single path element.
func checkZoneName(z string) error {
	if z == "" || z == "." || z == ".." || strings.ContainsAny(z, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadZoneName, z)
	}
	return nil
}

// Classify returns the policy zone for a path relative to the instance
// root. It is a pure function over the zone table: no I/O, no state.
// Paths containing parent-directory traversal are always Untouched so
// the planner can never reason about anything outside the root.
func (c *Config) Classify(rel string) (Class, string) {
	rel = Clean(rel)
	if rel == "" || rel == "." || hasTraversal(rel) {
		return Untouched, ""
	}

	for _, e := range c.ForceReset {
		p := Clean(e.Path)
		if p == rel || (e.Dir && strings.HasPrefix(rel, p+"/")) {
			return ForceReset, ""
		}
	}

	zone := topElement(rel)
	for _, z := range c.ManagedZones {
		if zone == z {
			return Managed, z
		}
	}

	return Untouched, ""
}

// Zone returns the managed zone owning rel, or "" when rel is not
// inside any managed zone. Used by the executor to bound directory
// pruning after deletes.
func (c *Config) Zone(rel string) string {
	cl, zone := c.Classify(rel)
	if cl != Managed {
		return ""
	}
	return zone
}

// ResetSource resolves the snapshot-relative source for a force-reset
// entry, falling back to DefaultsDir/Path when none is configured.
func (c *Config) ResetSource(e ForceResetEntry) string {
	if e.Source != "" {
		return Clean(e.Source)
	}
	return path.Join(c.DefaultsDir, Clean(e.Path))
}

// SortedResetEntries returns the force-reset entries ordered by
// destination path, so plans are deterministic regardless of
// configuration file order.
func (c *Config) SortedResetEntries() []ForceResetEntry {
	entries := make([]ForceResetEntry, len(c.ForceReset))
	copy(entries, c.ForceReset)
	sort.Slice(entries, func(i, j int) bool {
		return Clean(entries[i].Path) < Clean(entries[j].Path)
	})
	return entries
}

// inManagedZone reports whether rel's top element is a managed zone.
func (c *Config) inManagedZone(rel string) bool {
	top := topElement(rel)
	for _, z := range c.ManagedZones {
		if top == z {
			return true
		}
	}
	return false
}

// inResetZone reports whether rel falls under a reset zone. A reset
// zone of "." admits entries directly in the instance root: single
// files, or a root-level directory entry together with its subtree.
func (c *Config) inResetZone(rel string) bool {
	top := topElement(rel)
	for _, z := range c.ResetZones {
		if z == "." {
			if !strings.Contains(rel, "/") {
				return true
			}
			continue
		}
		if top == z {
			return true
		}
	}
	return false
}

// Clean normalizes a relative path to slash-separated form with no
// leading "./" or trailing slash.
func Clean(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	rel = path.Clean(rel)
	if rel == "." || rel == "/" {
		return ""
	}
	return strings.TrimPrefix(rel, "/")
}

// hasTraversal reports whether a cleaned path still escapes the root.
func hasTraversal(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../")
}

// topElement returns the first path element of a cleaned relative path.
func topElement(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return rel
}

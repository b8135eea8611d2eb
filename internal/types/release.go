package types

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// FirstReleaseID is the id given to the first release ever created.
const FirstReleaseID = "0.1"

// ErrReleaseExists is returned when a release id is stored twice for the
// same loop type.
var ErrReleaseExists = errors.New("release already exists")

// ReleaseMode selects which component of the release id is incremented.
type ReleaseMode string

const (
	ReleaseMinor ReleaseMode = "minor"
	ReleaseMajor ReleaseMode = "major"
)

// IsValid checks if the release mode value is valid
func (m ReleaseMode) IsValid() bool {
	return m == ReleaseMinor || m == ReleaseMajor
}

// Release is an immutable snapshot of the atlas for one loop type.
// Corrections are new releases, never edits.
type Release struct {
	ID          string       `json:"id"`
	LoopType    LoopType     `json:"loop_type"`
	Date        time.Time    `json:"date"`
	Description string       `json:"description"`
	Motifs      []NamedGroup `json:"motifs"`
}

// Assignments returns the loop → motif id mapping of the release.
func (r *Release) Assignments() map[string]MotifID {
	out := make(map[string]MotifID)
	for i := range r.Motifs {
		id := r.Motifs[i].MotifID()
		for _, loop := range r.Motifs[i].Members {
			out[loop] = id
		}
	}
	return out
}

// Validate checks the release id and every motif.
func (r *Release) Validate() error {
	if _, _, err := ParseReleaseID(r.ID); err != nil {
		return err
	}
	if !r.LoopType.IsValid() {
		return fmt.Errorf("release %s: invalid loop type %q", r.ID, r.LoopType)
	}
	seen := make(map[string]bool)
	for i := range r.Motifs {
		if err := r.Motifs[i].Validate(); err != nil {
			return fmt.Errorf("release %s: %w", r.ID, err)
		}
		id := r.Motifs[i].MotifID().String()
		if seen[id] {
			return fmt.Errorf("release %s: motif %s appears twice", r.ID, id)
		}
		seen[id] = true
	}
	return nil
}

// ParseReleaseID splits a major.minor release id.
func ParseReleaseID(id string) (major, minor int, err error) {
	parts := strings.Split(id, ".")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid release id %q: expected major.minor", id)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return 0, 0, fmt.Errorf("invalid release id %q: bad major", id)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return 0, 0, fmt.Errorf("invalid release id %q: bad minor", id)
	}
	if !semver.IsValid(semverOf(major, minor)) {
		return 0, 0, fmt.Errorf("invalid release id %q", id)
	}
	return major, minor, nil
}

// NextReleaseID computes the id following prev. An empty prev means no
// release exists yet and yields FirstReleaseID regardless of mode.
func NextReleaseID(prev string, mode ReleaseMode) (string, error) {
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid release mode %q", mode)
	}
	if prev == "" {
		return FirstReleaseID, nil
	}
	major, minor, err := ParseReleaseID(prev)
	if err != nil {
		return "", err
	}
	if mode == ReleaseMajor {
		return fmt.Sprintf("%d.0", major+1), nil
	}
	return fmt.Sprintf("%d.%d", major, minor+1), nil
}

// CompareReleaseIDs orders release ids numerically (1.10 > 1.9). Invalid
// ids sort before valid ones.
func CompareReleaseIDs(a, b string) int {
	return semver.Compare(releaseSemver(a), releaseSemver(b))
}

// SortReleaseIDs sorts ids oldest first.
func SortReleaseIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return CompareReleaseIDs(ids[i], ids[j]) < 0 })
}

func releaseSemver(id string) string {
	major, minor, err := ParseReleaseID(id)
	if err != nil {
		return ""
	}
	return semverOf(major, minor)
}

func semverOf(major, minor int) string {
	return fmt.Sprintf("v%d.%d.0", major, minor)
}

// ReleaseInfo is the header of a stored release.
type ReleaseInfo struct {
	ID          string    `json:"id"`
	LoopType    LoopType  `json:"loop_type"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Motifs      int       `json:"motifs"`
}

// MotifVersion is the recorded content of one handle at one version.
type MotifVersion struct {
	Release string   `json:"release"`
	Members []string `json:"members"`
	Parents []string `json:"parents,omitempty"`
}

// NamingState is handle → version → content for every motif ever released
// of one loop type.
type NamingState map[string]map[int]MotifVersion

// Record folds the motifs of rel into the state. A handle and version seen
// in an earlier release keeps its first recording.
func (s NamingState) Record(rel *Release) {
	for i := range rel.Motifs {
		g := &rel.Motifs[i]
		versions := s[g.Identity.Handle]
		if versions == nil {
			versions = make(map[int]MotifVersion)
			s[g.Identity.Handle] = versions
		}
		if _, ok := versions[g.Identity.Version]; ok {
			continue
		}
		mv := MotifVersion{Release: rel.ID, Members: append([]string(nil), g.Members...)}
		for _, p := range g.Parents {
			mv.Parents = append(mv.Parents, p.String())
		}
		versions[g.Identity.Version] = mv
	}
}

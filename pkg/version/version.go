package version

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Latest is the request matching the newest available version
const Latest = "latest"

// Version is a numeric major.minor.patch triple
type Version struct {
	Major int
	Minor int
	Patch int
}

// Request is a partial version specification with 0 to 3 components.
// An empty component list means "latest".
type Request struct {
	Raw        string
	Components []int
}

var requestRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)

// ParseRequest parses a user version request such as "latest", "7", "7.0" or "v7.0.4"
func ParseRequest(spec string) (*Request, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("version is required")
	}
	if strings.EqualFold(spec, Latest) {
		return &Request{Raw: Latest}, nil
	}

	matches := requestRegex.FindStringSubmatch(spec)
	if matches == nil {
		return nil, fmt.Errorf("invalid version request %q: expected latest or up to three numeric components", spec)
	}

	req := &Request{Raw: spec}
	for _, m := range matches[1:] {
		if m == "" {
			break
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("invalid version request %q: %w", spec, err)
		}
		req.Components = append(req.Components, n)
	}
	return req, nil
}

// IsLatest reports whether the request matches any version
func (r *Request) IsLatest() bool {
	return len(r.Components) == 0
}

// String returns the request as typed
func (r *Request) String() string {
	return r.Raw
}

// Match compares the request with v from the most significant component.
// It returns 0 when every requested component equals v, a positive value when
// the request is greater than v at the first differing position, and a
// negative value when v is greater.
func (r *Request) Match(v Version) int {
	parts := v.Components()
	for i, want := range r.Components {
		if want != parts[i] {
			if want > parts[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Parse parses a catalog version. A leading "v" is accepted, missing
// components default to 0, and pre-release or build suffixes are rejected.
func Parse(s string) (Version, error) {
	sv, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, fmt.Errorf("invalid version %q: not a numeric release", s)
	}
	return Version{Major: int(sv.Major()), Minor: int(sv.Minor()), Patch: int(sv.Patch())}, nil
}

// MustParse is like Parse but panics on error
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Components returns the triple as a slice
func (v Version) Components() []int {
	return []int{v.Major, v.Minor, v.Patch}
}

// String returns the canonical "X.Y.Z" form
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare compares two versions. Returns -1 if v < other, 0 if equal, 1 if v > other
func (v Version) Compare(other Version) int {
	a, b := v.Components(), other.Components()
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// SortDescending sorts version strings newest first. Unparseable strings
// sort last in lexical order.
func SortDescending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		a, errA := Parse(versions[i])
		b, errB := Parse(versions[j])
		switch {
		case errA != nil && errB != nil:
			return versions[i] < versions[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a.Compare(b) > 0
	})
}

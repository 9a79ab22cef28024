// Package location identifies project files either by filesystem path or by URL,
// and resolves relative paths against them.
package location

import (
	"net/url"
	"strings"
)

// Kind tells how a Location is addressed.
type Kind int

// Location kinds.
const (
	KindPath Kind = iota
	KindURL
)

// Location is an immutable file identifier. Two locations are equal iff their
// canonical strings are equal. Methods never modify the receiver.
type Location struct {
	kind Kind

	// prefix is everything before the first path segment: "" for relative
	// paths, "/" for absolute ones, "C:/" for drive paths, or
	// "scheme://host/" for URLs.
	prefix string

	// segments of URL locations are kept percent-encoded, so an escaped
	// "/" stays inside its segment.
	segments []string

	// base holds scheme, user and host of URL locations.
	base url.URL

	// confined is the number of leading segments Append may never pop,
	// or -1 when the location is not confined.
	confined int
}

// FromPath builds a Location from a filesystem path. Backslashes are treated
// as separators and the path is normalized.
func FromPath(p string) (Location, error) {
	if p == "" {
		return Location{}, newPathError("parse", p, "", ErrInvalidSegment)
	}
	p = toSlash(p)

	var prefix string
	switch {
	case hasDrive(p):
		prefix = p[:2] + "/"
		p = strings.TrimLeft(p[2:], "/")
	case strings.HasPrefix(p, "/"):
		prefix = "/"
		p = strings.TrimLeft(p, "/")
	}

	segments, err := resolve(nil, p, 0)
	if err != nil {
		return Location{}, newPathError("parse", prefix+p, p, err)
	}
	return Location{kind: KindPath, prefix: prefix, segments: segments, confined: -1}, nil
}

// FromURL builds a Location from an absolute URL such as
// "vscode-vfs://github/org/repo/Clarinet.toml". URLs with a query or a
// fragment do not name a file and are refused.
func FromURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		return Location{}, newPathError("parse", raw, "", ErrInvalidSegment)
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return Location{}, newPathError("parse", raw, "", ErrInvalidSegment)
	}

	escaped := strings.TrimLeft(u.EscapedPath(), "/")
	rel, uerr := dotSegments(escaped)
	if uerr != nil {
		return Location{}, newPathError("parse", raw, escaped, uerr)
	}
	segments, rerr := resolve(nil, rel, 0)
	if rerr != nil {
		return Location{}, newPathError("parse", raw, escaped, rerr)
	}

	authority := u.Host
	if u.User != nil {
		authority = u.User.String() + "@" + authority
	}
	return Location{
		kind:     KindURL,
		prefix:   u.Scheme + "://" + authority + "/",
		segments: segments,
		base:     url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host},
		confined: -1,
	}, nil
}

// Parse accepts either form. Strings containing "://" are parsed as URLs.
func Parse(s string) (Location, error) {
	if strings.Contains(s, "://") {
		return FromURL(s)
	}
	return FromPath(s)
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Location {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Kind returns how the location is addressed.
func (l Location) Kind() Kind {
	return l.kind
}

// String returns the canonical string form.
func (l Location) String() string {
	if l.kind == KindURL {
		u := l.base
		u.RawPath = "/" + strings.Join(l.segments, "/")
		u.Path, _ = url.PathUnescape(u.RawPath)
		return u.String()
	}
	if l.prefix == "" && len(l.segments) == 0 {
		return "."
	}
	return l.prefix + strings.Join(l.segments, "/")
}

// Equal reports whether both locations have the same canonical string.
func (l Location) Equal(other Location) bool {
	return l.String() == other.String()
}

// IsZero reports whether l was never initialized.
func (l Location) IsZero() bool {
	return l.prefix == "" && l.segments == nil && l.kind == KindPath && l.confined == 0
}

// Base returns the last segment, or "" for a root. URL segments are
// returned unescaped.
func (l Location) Base() string {
	if len(l.segments) == 0 {
		return ""
	}
	base := l.segments[len(l.segments)-1]
	if l.kind == KindURL {
		if s, err := url.PathUnescape(base); err == nil {
			return s
		}
	}
	return base
}

// Parent returns the enclosing directory. It fails with ErrNoParent for a root.
func (l Location) Parent() (Location, error) {
	if len(l.segments) == 0 || len(l.segments) <= l.confined {
		return Location{}, newPathError("parent", l.String(), "", ErrNoParent)
	}
	return l.with(l.segments[:len(l.segments)-1]), nil
}

// Append resolves a relative path against l. "." and empty segments are
// skipped and ".." pops one segment. It fails with ErrInvalidSegment when the
// input is absolute, empty, contains a NUL byte, or would climb above the
// root (or above the confinement root, see Confine).
func (l Location) Append(relative string) (Location, error) {
	rel := toSlash(relative)
	switch {
	case strings.TrimSpace(rel) == "":
		return Location{}, newPathError("append", l.String(), relative, ErrInvalidSegment)
	case strings.HasPrefix(rel, "/"), hasDrive(rel), strings.Contains(rel, "://"):
		return Location{}, newPathError("append", l.String(), relative, ErrInvalidSegment)
	case strings.IndexByte(rel, 0) >= 0:
		return Location{}, newPathError("append", l.String(), relative, ErrInvalidSegment)
	}
	if l.kind == KindURL {
		rel = escapeSegments(rel)
	}

	floor := 0
	if l.confined > 0 {
		floor = l.confined
	}
	segments, err := resolve(l.segments, rel, floor)
	if err != nil {
		return Location{}, newPathError("append", l.String(), relative, err)
	}
	return l.with(segments), nil
}

// Confine returns a copy of l that treats itself as a root: Append on the
// copy (or on anything derived from it) can never climb above l.
func (l Location) Confine() Location {
	c := l.with(l.segments)
	c.confined = len(l.segments)
	return c
}

// Contains reports whether other is l itself or lies below it.
func (l Location) Contains(other Location) bool {
	if l.kind != other.kind || l.prefix != other.prefix || len(other.segments) < len(l.segments) {
		return false
	}
	for i, s := range l.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// MarshalText encodes the canonical string.
func (l Location) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a canonical string produced by MarshalText.
func (l *Location) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Location) with(segments []string) Location {
	return Location{
		kind:     l.kind,
		prefix:   l.prefix,
		segments: append([]string(nil), segments...),
		base:     l.base,
		confined: l.confined,
	}
}

// resolve applies rel on top of base without touching base's backing array.
func resolve(base []string, rel string, floor int) ([]string, error) {
	out := append(make([]string, 0, len(base)+4), base...)
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) <= floor {
				return nil, ErrInvalidSegment
			}
			out = out[:len(out)-1]
		default:
			if strings.IndexByte(seg, 0) >= 0 {
				return nil, ErrInvalidSegment
			}
			out = append(out, seg)
		}
	}
	return out, nil
}

// dotSegments unescapes segments that spell "." or ".." so resolve treats
// them as navigation, and rejects malformed escapes.
func dotSegments(escaped string) (string, error) {
	parts := strings.Split(escaped, "/")
	for i, seg := range parts {
		s, err := url.PathUnescape(seg)
		if err != nil {
			return "", ErrInvalidSegment
		}
		if s == "." || s == ".." {
			parts[i] = s
		}
	}
	return strings.Join(parts, "/"), nil
}

// escapeSegments percent-encodes each plain-text segment of rel for use in a
// URL path.
func escapeSegments(rel string) string {
	parts := strings.Split(rel, "/")
	for i, seg := range parts {
		if seg != "." && seg != ".." {
			parts[i] = url.PathEscape(seg)
		}
	}
	return strings.Join(parts, "/")
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func hasDrive(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

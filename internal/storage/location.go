package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Location is a parsed source or destination argument.
type Location struct {
	Scheme string
	User   string
	Host   string
	Path   string
}

// IsRemote reports whether the location refers to a remote host.
func (l Location) IsRemote() bool {
	return l.Host != ""
}

// String returns a human-readable representation.
func (l Location) String() string {
	if !l.IsRemote() {
		return l.Path
	}
	if l.User != "" {
		return fmt.Sprintf("%s@%s:%s", l.User, l.Host, l.Path)
	}
	return fmt.Sprintf("%s:%s", l.Host, l.Path)
}

// ParseLocation parses a CLI path argument.
//
// Supported forms:
//   - /absolute/path and relative/path  → local
//   - file:///absolute/path             → local
//   - host:path and user@host:path      → SFTP remote
//   - sftp://[user@]host/path           → SFTP remote
//
// Ambiguity rule: an argument whose pre-colon part contains a path
// separator is local ("dir/file:odd" is a filename, not a host), as is an
// absolute path or one starting with "." — same resolution rsync uses.
func ParseLocation(arg string) (Location, error) {
	if rest, ok := strings.CutPrefix(arg, "file://"); ok {
		if rest == "" {
			return Location{}, fmt.Errorf("empty path in %q", arg)
		}
		return Location{Scheme: "file", Path: rest}, nil
	}

	if rest, ok := strings.CutPrefix(arg, "sftp://"); ok {
		return parseSFTPURL(arg, rest)
	}

	if idx := strings.Index(arg, "://"); idx >= 0 {
		return Location{}, fmt.Errorf("%q: %w", arg[:idx], ErrUnsupportedScheme)
	}

	if filepath.IsAbs(arg) || strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") {
		return Location{Path: arg}, nil
	}

	colonIdx := strings.IndexByte(arg, ':')
	if colonIdx < 0 {
		return Location{Path: arg}, nil
	}

	hostPart := arg[:colonIdx]
	pathPart := arg[colonIdx+1:]

	// A path separator before the colon means a local filename that
	// happens to contain a colon.
	if strings.ContainsRune(hostPart, '/') || hostPart == "" {
		return Location{Path: arg}, nil
	}

	var user, host string
	if atIdx := strings.LastIndexByte(hostPart, '@'); atIdx >= 0 {
		user = hostPart[:atIdx]
		host = hostPart[atIdx+1:]
	} else {
		host = hostPart
	}
	if host == "" {
		return Location{Path: arg}, nil
	}

	return Location{Scheme: "sftp", User: user, Host: host, Path: pathPart}, nil
}

func parseSFTPURL(raw, rest string) (Location, error) {
	hostPart := rest
	path := ""
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		hostPart = rest[:slash]
		path = rest[slash:]
	}

	var user, host string
	if atIdx := strings.LastIndexByte(hostPart, '@'); atIdx >= 0 {
		user = hostPart[:atIdx]
		host = hostPart[atIdx+1:]
	} else {
		host = hostPart
	}
	if host == "" {
		return Location{}, fmt.Errorf("missing host in %q", raw)
	}
	return Location{Scheme: "sftp", User: user, Host: host, Path: path}, nil
}

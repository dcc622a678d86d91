package identity

import (
	"strings"
)

const (
	// Separator delimits the parts of a namespaced name.
	Separator = "::"

	// VersionUnspecified suppresses the version suffix.
	VersionUnspecified = "unspecified"
)

// Namer builds collision-free display names of the form
// ::<group>.<bundle>::<name>::<major>.<minor>.
type Namer struct {
	Group   string
	Bundle  string
	Version string
}

// Prefix returns the namespace prefix, e.g. "::com.example.orders::".
func (n Namer) Prefix() string {
	ns := n.Bundle
	if n.Group != "" {
		ns = n.Group + "." + n.Bundle
	}
	return Separator + ns + Separator
}

// Suffix returns the version suffix, e.g. "::1.0", or "" when the version is unspecified.
func (n Namer) Suffix() string {
	v := NormalizeVersion(n.Version)
	if v == "" {
		return ""
	}
	return Separator + v
}

// Name namespaces name. An already namespaced name is returned unchanged.
func (n Namer) Name(name string) string {
	if strings.HasPrefix(name, n.Prefix()) {
		return name
	}
	return n.Prefix() + name + n.Suffix()
}

// NormalizeVersion reduces a version to major.minor. A missing minor
// becomes 0 and an unspecified version becomes "".
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v == VersionUnspecified {
		return ""
	}
	parts := strings.SplitN(v, ".", 3)
	major := leadingDigits(parts[0])
	if major == "" {
		return v
	}
	minor := "0"
	if len(parts) > 1 {
		if d := leadingDigits(parts[1]); d != "" {
			minor = d
		}
	}
	return major + "." + minor
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

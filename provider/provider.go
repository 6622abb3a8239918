package provider

import (
	"context"
	"errors"
	"regexp"
)

// ErrInvalidURL is returned by Provider.Download when the given url does not
// belong to the provider.
var ErrInvalidURL = errors.New("url does not match provider pattern")

// Match holds the named captures of a successful url match. It contains at
// least an "id" entry.
type Match map[string]string

// Provider retrieves files from one particular file hosting service.
type Provider interface {
	// Match reports whether the entire url belongs to this provider. It
	// returns the named captures on success and nil otherwise. It never
	// performs network I/O.
	Match(u string) Match

	// Download resolves url=u to a direct download and saves it into
	// targetDir. A non-empty name requests a particular destination file
	// name; providers whose API dictates the name may ignore it. It returns
	// the path of the saved file.
	Download(ctx context.Context, u string, targetDir string, name string) (string, error)
}

// MustCompilePattern compiles a provider pattern such that it only matches
// complete urls.
func MustCompilePattern(expr string) *regexp.Regexp {
	return regexp.MustCompile(`^(?:` + expr + `)$`)
}

// MatchPattern applies re to u and returns its named captures, or nil if u
// does not match.
func MatchPattern(re *regexp.Regexp, u string) Match {
	sub := re.FindStringSubmatch(u)
	if sub == nil {
		return nil
	}

	m := Match{}
	for i, name := range re.SubexpNames() {
		if name != "" {
			m[name] = sub[i]
		}
	}

	return m
}

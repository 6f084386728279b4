// Package gitremote reads the remotes of a local git checkout and reduces
// their URLs to owner/name pairs the backend understands.
package gitremote

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Remote is one [remote "..."] section of .git/config.
type Remote struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	FullName string `json:"full_name"`
}

// ErrNoRemotes is returned when the config has no usable remote.
var ErrNoRemotes = errors.New("no remotes found in .git/config")

var (
	sectionPattern = regexp.MustCompile(`^\[remote "([^"]+)"\]$`)
	urlPattern     = regexp.MustCompile(`^(?:https?://[^/]+/|ssh://[^/]+/|git@[^:]+:)([^/]+)/([^/\s]+?)(?:\.git)?/?$`)
)

// Detect reads dir/.git/config and returns every remote with a parseable URL.
func Detect(dir string) ([]Remote, error) {
	configPath := filepath.Join(dir, ".git", "config")
	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not open .git/config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse scans a git config stream. Remotes whose url cannot be reduced to
// owner/name are reported as an error naming the remote.
func Parse(r io.Reader) ([]Remote, error) {
	var (
		remotes []Remote
		current string
		inside  bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			m := sectionPattern.FindStringSubmatch(line)
			inside = m != nil
			if inside {
				current = m[1]
			}
			continue
		}
		if !inside {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != "url" {
			continue
		}
		remote, err := ParseURL(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid repository url for remote %q: %w", current, err)
		}
		remote.Name = current
		remotes = append(remotes, remote)
		// only the first url of a section counts
		inside = false
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading git config: %w", err)
	}
	if len(remotes) == 0 {
		return nil, ErrNoRemotes
	}
	return remotes, nil
}

// ParseURL reduces an HTTPS or SSH clone URL to its owner and repository.
func ParseURL(rawURL string) (Remote, error) {
	m := urlPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return Remote{}, fmt.Errorf("unsupported remote URL format: %s", rawURL)
	}
	return Remote{
		URL:      rawURL,
		Owner:    m[1],
		Repo:     m[2],
		FullName: m[1] + "/" + m[2],
	}, nil
}

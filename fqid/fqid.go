// Package fqid builds and parses fully qualified identifiers.
//
// An FQID is the node base URL followed by "authors/<serial>", optionally
// extended with a path to an object owned by that author:
//
//	http://n2/api/authors/42
//	http://n2/api/authors/42/posts/7
//	http://n2/api/authors/42/commented/9
//	http://n2/api/authors/42/liked/3
package fqid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/deemkeen/nodelink/domain"
)

const authorsSegment = "authors/"

var localUsernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,99}$`)

// Ref is the decomposition of an FQID.
type Ref struct {
	BaseURL      string
	AuthorSerial string
	AuthorFQID   string
}

// NormalizeBaseURL trims whitespace and guarantees a single trailing slash.
func NormalizeBaseURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/"
}

func Author(baseURL, serial string) string {
	return NormalizeBaseURL(baseURL) + authorsSegment + serial
}

func Post(baseURL, authorSerial, postSerial string) string {
	return Author(baseURL, authorSerial) + "/posts/" + postSerial
}

func Comment(baseURL, authorSerial, commentSerial string) string {
	return Author(baseURL, authorSerial) + "/commented/" + commentSerial
}

func Like(baseURL, authorSerial, likeSerial string) string {
	return Author(baseURL, authorSerial) + "/liked/" + likeSerial
}

// Inbox returns the inbox URL of the author identified by authorFQID.
func Inbox(authorFQID string) string {
	return strings.TrimRight(authorFQID, "/") + "/inbox"
}

// Parse splits an FQID into the owning node base URL and the author serial.
// Any object FQID nested under an author parses to that author.
func Parse(id string) (Ref, error) {
	id = strings.TrimSpace(id)
	u, err := url.Parse(id)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Ref{}, fmt.Errorf("%w: %q", domain.ErrMalformedFQID, id)
	}

	offset := len(u.Scheme) + len("://") + len(u.Host)
	idx := strings.Index(id[offset:], "/"+authorsSegment)
	if idx < 0 {
		return Ref{}, fmt.Errorf("%w: %q has no authors segment", domain.ErrMalformedFQID, id)
	}

	idx += offset
	base := id[:idx+1]
	rest := id[idx+1+len(authorsSegment):]
	serial, _, _ := strings.Cut(rest, "/")
	if serial == "" {
		return Ref{}, fmt.Errorf("%w: %q has no author serial", domain.ErrMalformedFQID, id)
	}

	return Ref{
		BaseURL:      base,
		AuthorSerial: serial,
		AuthorFQID:   base + authorsSegment + serial,
	}, nil
}

// Serial returns the trailing path segment of an FQID.
func Serial(id string) string {
	id = strings.TrimRight(strings.TrimSpace(id), "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// RemoteUsername synthesizes a local username for an imported remote author.
// Local usernames never contain "__", so the result cannot collide with one.
func RemoteUsername(baseURL, serial string) string {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.NewReplacer(".", "_", ":", "_").Replace(host)
	return host + "__" + serial
}

// QualifiedRemoteUsername extends RemoteUsername with a digest of the whole
// base URL. Nodes sharing a host or whose hosts differ only in '.' and '_'
// map to distinct names.
func QualifiedRemoteUsername(baseURL, serial string) string {
	sum := sha256.Sum256([]byte(baseURL))
	return RemoteUsername(baseURL, serial) + "_" + hex.EncodeToString(sum[:4])
}

func ValidLocalUsername(username string) bool {
	return localUsernamePattern.MatchString(username) && !strings.Contains(username, "__")
}

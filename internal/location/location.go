package location

import (
	"fmt"
	"regexp"
)

var locationPattern = regexp.MustCompile(`\A([A-Za-z][A-Za-z0-9+.-]*)://([^/]+)/(.*)\z`)

// RemoteLocation identifies a key prefix inside a bucket.
type RemoteLocation struct {
	Scheme string
	Bucket string
	Prefix string
}

type MalformedLocationError struct {
	Input string
}

func (e *MalformedLocationError) Error() string {
	return fmt.Sprintf("malformed remote location %q: must be of the form scheme://bucket/prefix", e.Input)
}

// Parse parses a location of the form scheme://bucket/prefix. The prefix may
// be empty but the slash after the bucket is required.
func Parse(s string) (RemoteLocation, error) {
	m := locationPattern.FindStringSubmatch(s)
	if m == nil {
		return RemoteLocation{}, &MalformedLocationError{Input: s}
	}
	return RemoteLocation{
		Scheme: m[1],
		Bucket: m[2],
		Prefix: m[3],
	}, nil
}

func (l RemoteLocation) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
}

func (l RemoteLocation) Equal(other RemoteLocation) bool {
	return l == other
}

// ObjectURI renders the location of a single key in the same bucket.
func (l RemoteLocation) ObjectURI(key string) string {
	return l.Scheme + "://" + l.Bucket + "/" + key
}

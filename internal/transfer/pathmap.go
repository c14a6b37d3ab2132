package transfer

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type PrefixMismatchError struct {
	Prefix string
	Key    string
}

func (e *PrefixMismatchError) Error() string {
	return fmt.Sprintf("object key %q does not start with prefix %q", e.Key, e.Prefix)
}

// LocalPath maps a remote key below prefix onto destinationRoot. Runs of
// slashes collapse into one and the result uses the host separator.
func LocalPath(prefix, key, destinationRoot string) (string, error) {
	if !strings.HasPrefix(key, prefix) {
		return "", &PrefixMismatchError{Prefix: prefix, Key: key}
	}

	remainder := key[len(prefix):]
	if strings.Trim(remainder, "/") == "" && !strings.HasSuffix(key, "/") {
		remainder = path.Base(key)
	}

	return filepath.FromSlash(collapseSlashes(destinationRoot + "/" + remainder)), nil
}

// MapPath is LocalPath plus creation of the parent directories. A failure to
// create them is left for the subsequent file open to report.
func MapPath(prefix, key, destinationRoot string) (string, error) {
	localPath, err := LocalPath(prefix, key, destinationRoot)
	if err != nil {
		return "", err
	}
	_ = os.MkdirAll(filepath.Dir(localPath), 0o755)
	return localPath, nil
}

func collapseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

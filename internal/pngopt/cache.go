package pngopt

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
)

// Seen is an append-only on-disk record of input-file hashes that have
// already been optimized, grounded on oxipng's cache.rs: a single
// newline-delimited file under the cache directory, checked by linear
// scan (this is meant to skip re-optimizing a handful of inputs across
// repeated runs over the same tree, not to scale to millions of entries).
type Seen struct {
	path string
}

// OpenSeen returns a Seen backed by "<dir>/optimized_file_hashes",
// creating dir if necessary.
func OpenSeen(dir string) (*Seen, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Seen{path: filepath.Join(dir, "optimized_file_hashes")}, nil
}

func hashHex(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%x", h.Sum64())
}

// Contains reports whether data's hash is already recorded.
func (s *Seen) Contains(data []byte) (bool, error) {
	return s.containsHash(hashHex(data))
}

func (s *Seen) containsHash(hash string) (bool, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if sc.Text() == hash {
			return true, nil
		}
	}
	return false, sc.Err()
}

// Record appends data's hash to the cache file, unless it is already
// present.
func (s *Seen) Record(data []byte) error {
	hash := hashHex(data)
	seen, err := s.containsHash(hash)
	if err != nil || seen {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, hash)
	return err
}

// Package cache implements the multi-process compile-cache coordinator:
// fingerprinting a kernel build, mapping it to a deterministic path
// under the cache directory, and serializing concurrent builds of the
// same fingerprint across processes with an advisory file lock
// (spec.md §4.2).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/occa-go/occa/internal/constants"
)

// StealAfter bounds how long WaitForFile waits for a concurrent
// builder's artifact before giving up and returning false. Zero (the
// default) waits forever. Nothing takes over the other builder's claim
// when the wait gives up.
var StealAfter = constants.CacheWaitForever

// Fingerprint returns the SHA-256 hex digest identifying a unique
// compiled artifact: the ordered concatenation of every input that can
// change the bits the compiler emits. Two builds with the same
// fingerprint are guaranteed interchangeable.
func Fingerprint(backend, platformID, deviceID, salt, envPrelude, compiler, flags, functionName string) string {
	h := sha256.New()
	for _, part := range []string{backend, platformID, deviceID, salt, envPrelude, compiler, flags, functionName} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Path returns the deterministic on-disk location for the artifact
// built from sourcePath under fingerprint, rooted at dir.
func Path(dir, sourcePath, fingerprint string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fingerprint, base)
}

// Claim is an advisory, multi-process exclusive lock on a cache entry,
// held via a sibling ".lock" file.
type Claim struct {
	file *os.File
	path string
}

// TryClaim attempts to take an exclusive, non-blocking claim on path's
// sibling ".lock" file. ok is false if another process already holds it.
func TryClaim(path string) (c *Claim, ok bool, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, err
	}
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &Claim{file: f, path: lockPath}, true, nil
}

// Release drops the claim, allowing other processes (or WaitForFile
// waiters) to proceed. Safe to call once; a caller that fails to build
// must still call Release so others are not blocked forever.
func (c *Claim) Release() error {
	if c == nil || c.file == nil {
		return nil
	}
	err := unix.Flock(int(c.file.Fd()), unix.LOCK_UN)
	cerr := c.file.Close()
	if err != nil {
		return err
	}
	return cerr
}

// HaveFile reports whether the built artifact at path already exists
// and is ready to load, i.e. a cache hit.
func HaveFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	f, err := os.Open(path + ".lock")
	if err != nil {
		return os.IsNotExist(err)
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		return false
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return true
}

// WaitForFile polls for path to appear, the Go analog of the teacher's
// character-device-wait retry loop. If the artifact is still missing or
// claimed after StealAfter (when non-zero), WaitForFile gives up and
// returns false.
func WaitForFile(path string) bool {
	start := time.Now()
	ticker := time.NewTicker(constants.CachePollInterval)
	defer ticker.Stop()

	for {
		if HaveFile(path) {
			return true
		}
		if StealAfter > 0 && time.Since(start) >= StealAfter {
			return false
		}
		<-ticker.C
	}
}

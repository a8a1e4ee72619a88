package fs

import (
	"encoding/binary"
	"hash"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/crypto/blake2b"
)

var _ ports.Hasher = (*Hasher)(nil)

// keyTag versions the fingerprint layout itself.
const keyTag = "synapse-key-v1"

// Hasher computes content-addressed cache keys.
type Hasher struct {
	version string
}

// NewHasher creates a Hasher that mixes version into every key, so a new
// compiler release never serves entries produced by an older one.
func NewHasher(version string) *Hasher {
	return &Hasher{version: version}
}

// Fingerprint digests the unit content, the canonical configuration, the
// compiler version and, when given, the shapes of the direct dependencies.
// Every section is length-prefixed so no two input tuples share a byte stream.
func (h *Hasher) Fingerprint(
	unit *domain.SourceUnit,
	cfg domain.CompilerConfig,
	deps []ports.DependencyDigest,
) domain.CacheKey {
	// blake2b.New256 only fails for keys longer than 64 bytes.
	d, _ := blake2b.New256(nil)
	writeSection(d, []byte(keyTag))
	writeSection(d, unit.Content)
	writeSection(d, []byte(unit.Language.String()))
	writeSection(d, cfg.Canonical())
	writeSection(d, []byte(h.version))

	sorted := slices.Clone(deps)
	slices.SortFunc(sorted, func(a, b ports.DependencyDigest) int {
		return strings.Compare(a.Specifier, b.Specifier)
	})
	writeCount(d, len(sorted))
	for _, dep := range sorted {
		writeSection(d, []byte(dep.Specifier))
		writeSection(d, []byte(dep.Kind.String()))
		writeSection(d, []byte(dep.Shape))
	}

	var key domain.CacheKey
	copy(key[:], d.Sum(nil))
	return key
}

func writeCount(w hash.Hash, n int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n)) //nolint:gosec // n is a length
	_, _ = w.Write(buf[:])
}

func writeSection(w hash.Hash, b []byte) {
	writeCount(w, len(b))
	_, _ = w.Write(b)
}

// ComputeFileHash computes the XXHash of a file's content. The watcher uses it
// to ignore events that leave a file unchanged.
func ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

package langpack

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lingocore/engine/internal/logging"
)

// Fetcher is the out-of-scope remote collaborator that supplies a language
// pack's current hash and raw bundle bytes when the local cache misses or is
// stale. The NLP pipeline that produces these bytes is not part of this
// module; only this interface is.
type Fetcher interface {
	// CurrentHash returns the hash the remote currently considers
	// authoritative for packID.
	CurrentHash(ctx context.Context, packID string) (uint64, error)
	// Fetch returns the raw bundle file bytes (header + compressed payload)
	// for packID, matching the hash most recently returned by CurrentHash.
	Fetch(ctx context.Context, packID string) ([]byte, error)
}

// decodedCacheSize bounds how many decoded packs are held in memory at
// once. A host that switches between a handful of languages stays fully
// warm; anything beyond that evicts least-recently-used.
const decodedCacheSize = 4

// Loader ensures a cached, hash-addressed bundle exists on disk for a pack
// id, fetching from the remote Fetcher on a cache miss or corruption, and
// decodes it into a Pack. Decoded packs are additionally memoized in an LRU
// keyed by bundle hash, so switching between languages does not re-read and
// re-decode a multi-megabyte bundle every time.
type Loader struct {
	CacheDir string
	Fetcher  Fetcher

	decoded *lru.Cache[uint64, *Pack]
}

func (l *Loader) decodedCache() *lru.Cache[uint64, *Pack] {
	if l.decoded == nil {
		// Size is a small constant; the constructor only errors on size <= 0.
		l.decoded, _ = lru.New[uint64, *Pack](decodedCacheSize)
	}
	return l.decoded
}

// cachePath returns the on-disk path for a pack's bundle file at the given
// hash: `<cache>/<pack>/language_data_<hash>.bin`, decimal-digit hash.
func (l *Loader) cachePath(packID string, hash uint64) string {
	return filepath.Join(l.CacheDir, packID, fmt.Sprintf("language_data_%d.bin", hash))
}

// Load returns the Pack for packID, using the local cache when it matches
// the remote's current hash and falling back to the Fetcher otherwise. A
// fetched bundle that fails to decode is re-fetched exactly once; a second
// failure is returned to the caller.
func (l *Loader) Load(ctx context.Context, packID string) (*Pack, error) {
	log := logging.LoggerFromContext(ctx).With(logging.String("pack_id", packID))

	hash, err := l.Fetcher.CurrentHash(ctx, packID)
	if err != nil {
		return nil, fmt.Errorf("langpack: resolve current hash for %q: %w", packID, err)
	}
	if pack, ok := l.decodedCache().Get(hash); ok {
		return pack, nil
	}
	path := l.cachePath(packID, hash)

	if pack, err := l.loadFromDisk(path, hash); err == nil {
		l.decodedCache().Add(hash, pack)
		return pack, nil
	}

	pack, err := l.fetchAndCache(ctx, packID, hash, path)
	if err == nil {
		l.decodedCache().Add(hash, pack)
		return pack, nil
	}
	log.Warn("language pack fetch failed, retrying once", logging.Error(err))

	pack, err = l.fetchAndCache(ctx, packID, hash, path)
	if err != nil {
		return nil, fmt.Errorf("langpack: fetch %q failed after retry: %w", packID, err)
	}
	l.decodedCache().Add(hash, pack)
	return pack, nil
}

func (l *Loader) loadFromDisk(path string, want uint64) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if got, err := bundleFileHash(data); err != nil || got != want {
		return nil, fmt.Errorf("langpack: cached bundle hash mismatch at %s", path)
	}
	return DecodeBundleFile(data)
}

func (l *Loader) fetchAndCache(ctx context.Context, packID string, want uint64, path string) (*Pack, error) {
	data, err := l.Fetcher.Fetch(ctx, packID)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle: %w", err)
	}
	got, err := bundleFileHash(data)
	if err != nil {
		return nil, fmt.Errorf("inspect fetched bundle: %w", err)
	}
	if got != want {
		return nil, fmt.Errorf("fetched bundle hash %d does not match advertised %d", got, want)
	}
	pack, err := DecodeBundleFile(data)
	if err != nil {
		return nil, fmt.Errorf("decode fetched bundle: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write cache file: %w", err)
	}
	return pack, nil
}

// bundleFileHash reads the embedded payload hash out of a bundle file's
// fixed header without decoding the payload.
func bundleFileHash(data []byte) (uint64, error) {
	if len(data) < 12 || string(data[:4]) != bundleFileMagic {
		return 0, errors.New("langpack: not a bundle file")
	}
	return binary.BigEndian.Uint64(data[4:12]), nil
}

// bundleFileMagic is the on-disk framing magic, distinct from BundleHeader's
// in-memory Magic string field so the file format can evolve independently.
const bundleFileMagic = "LPKF"

// EncodeBundleFile serializes a Pack into a single self-describing byte
// slice: a fixed-width header (capacity hints + hash) followed by the
// zstd-compressed gob payload.
func EncodeBundleFile(p *Pack) ([]byte, error) {
	header, payload, err := EncodeBundle(p)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 4+8+4*4+4+len(payload))
	buf = append(buf, bundleFileMagic...)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], header.Hash)
	buf = append(buf, tmp[:]...)
	for _, n := range []int{header.StringCount, header.SentenceCount, header.HeteronymCount, header.MultiwordCount} {
		var itmp [4]byte
		binary.BigEndian.PutUint32(itmp[:], uint32(n))
		buf = append(buf, itmp[:]...)
	}
	var ltmp [4]byte
	binary.BigEndian.PutUint32(ltmp[:], uint32(len(payload)))
	buf = append(buf, ltmp[:]...)
	buf = append(buf, payload...)
	return buf, nil
}

// DecodeBundleFile parses the framing written by EncodeBundleFile and
// decodes the contained Pack, verifying the payload hash.
func DecodeBundleFile(data []byte) (*Pack, error) {
	const fixedLen = 4 + 8 + 4*4 + 4
	if len(data) < fixedLen {
		return nil, errors.New("langpack: bundle file too short")
	}
	if string(data[:4]) != bundleFileMagic {
		return nil, fmt.Errorf("langpack: bad bundle file magic %q", data[:4])
	}
	offset := 4
	hash := binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	counts := make([]int, 4)
	for i := range counts {
		counts[i] = int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
	}
	payloadLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if len(data) < offset+payloadLen {
		return nil, errors.New("langpack: bundle file truncated")
	}
	payload := data[offset : offset+payloadLen]

	header := BundleHeader{
		Magic:          bundleMagic,
		Hash:           hash,
		StringCount:    counts[0],
		SentenceCount:  counts[1],
		HeteronymCount: counts[2],
		MultiwordCount: counts[3],
	}
	return DecodeBundle(header, payload)
}

package langpack

import "hash/fnv"

// HashBytes computes the fast, non-cryptographic 64-bit hash used to
// content-address a bundle file on disk. FNV-1a is plenty here; the hash
// only names cache files, it carries no integrity guarantee beyond
// accidental corruption.
func HashBytes(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}

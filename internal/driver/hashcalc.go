package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"rill/internal/project"
	"rill/internal/tir"
)

// FuncDigest hashes one typed function's full content. Two functions with
// the same digest produce the same analysis, which is what keys the cache.
func FuncDigest(fn *tir.Func) (project.Digest, error) {
	raw, err := msgpack.Marshal(fn)
	if err != nil {
		return project.Digest{}, fmt.Errorf("encode function %q: %w", fn.Name, err)
	}
	return sha256.Sum256(raw), nil
}

// cacheKey mixes the function digest with everything else that changes the
// analysis output: the snapshot schema and the diagnostic cap.
func cacheKey(content project.Digest, maxDiagnostics int) project.Digest {
	var salt [10]byte
	binary.LittleEndian.PutUint16(salt[0:2], tir.SnapshotSchemaVersion)
	binary.LittleEndian.PutUint64(salt[2:10], uint64(maxDiagnostics)) // #nosec G115 -- validated non-negative upstream
	return project.Combine(content, sha256.Sum256(salt[:]))
}

// Package compression wraps the S2 format (a dictionary-free,
// Snappy-compatible LZ variant) from github.com/klauspost/compress for
// the server-to-client snapshot channel (§4.E). S2 was picked over
// full zstd/flate because snapshots must compress and decompress well
// under a frame budget; a dictionary-free block format also avoids any
// shared-state requirement between peers that reconnect mid-session.
package compression

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// MaxDecompressedSize bounds Decompress's output so a malformed or
// hostile peer can't make the decoder allocate unbounded memory.
const MaxDecompressedSize = 1 << 20 // matches config.MaxServerToClient

// Compress returns src's S2-compressed block; it reuses dst's storage
// when dst is large enough, replacing rather than appending to dst's
// contents. Passing
// a reused dst[:0] avoids an allocation per snapshot on the hot path.
func Compress(dst, src []byte) []byte {
	return s2.Encode(dst, src)
}

// Decompress returns the decompressed form of src, failing if the
// declared decompressed size exceeds MaxDecompressedSize or the block
// is otherwise malformed.
func Decompress(src []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, fmt.Errorf("compression: reading decoded length: %w", err)
	}
	if n > MaxDecompressedSize {
		return nil, fmt.Errorf("compression: decoded size %d exceeds bound %d", n, MaxDecompressedSize)
	}
	out := make([]byte, n)
	decoded, err := s2.Decode(out, src)
	if err != nil {
		return nil, fmt.Errorf("compression: decoding: %w", err)
	}
	return decoded, nil
}

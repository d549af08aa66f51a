package grantauth

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"
)

// digestFactories maps each JCA-style algorithm name to a constructor for
// a fresh hash.Hash. Registered once at package init, the same way crypto packages
// register themselves against crypto.Hash in the standard library.
var digestFactories = map[string]func() hash.Hash{
	"MD5":      md5.New,
	"SHA-256":  sha256.New,
	"SHA-512":  sha512.New,
	"SHA3-256": sha3.New256,
}

// PasswordHasher wraps a single named message-digest algorithm behind a
// lock, so the stateful underlying digester can be shared safely across
// concurrent sessions. Default algorithm is SHA-256.
//
// Digest encodes the clear password as ISO-8859-1 bytes before hashing —
// a wire-compatibility requirement, not a design preference: non-ASCII
// input is silently mapped byte-wise and must not be "fixed" without a
// compatibility flag.
type PasswordHasher struct {
	mu        sync.Mutex
	algorithm string
	newHash   func() hash.Hash
}

// NewPasswordHasher builds a hasher for the named algorithm. An empty
// name defaults to "SHA-256". The name must resolve via digestFactories;
// callers that accept user-supplied algorithm names should check
// SupportsAlgorithm first.
func NewPasswordHasher(algorithm string) (*PasswordHasher, error) {
	if algorithm == "" {
		algorithm = "SHA-256"
	}
	factory, ok := digestFactories[algorithm]
	if !ok {
		return nil, fmt.Errorf("grantauth: unknown digest algorithm %q", algorithm)
	}
	return &PasswordHasher{algorithm: algorithm, newHash: factory}, nil
}

// SupportsAlgorithm reports whether name is a known JCA-style digest name.
func SupportsAlgorithm(name string) bool {
	_, ok := digestFactories[name]
	return ok
}

// Algorithm returns the configured digest algorithm name.
func (h *PasswordHasher) Algorithm() string {
	return h.algorithm
}

// Digest hashes clear, encoded as ISO-8859-1 (each rune truncated to its
// low byte — non-Latin-1 code points are therefore lossy by design), and
// returns the lowercase hex digest.
func (h *PasswordHasher) Digest(clear string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	hasher := h.newHash()
	hasher.Write(toLatin1(clear))
	return hex.EncodeToString(hasher.Sum(nil))
}

// toLatin1 encodes s as ISO-8859-1 bytes: every rune is truncated to its
// low 8 bits, matching the legacy wire format this hasher must remain
// byte-compatible with.
func toLatin1(s string) []byte {
	runes := []rune(s)
	out := make([]byte, len(runes))
	for i, r := range runes {
		out[i] = byte(r)
	}
	return out
}

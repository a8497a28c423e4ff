package hash

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"waterdash/internal/model"
)

// Hasher hashes and verifies passwords. Stored hashes are tagged with the
// scheme that produced them ("bcrypt$…", "sha256$<salt>$<digest>") so
// verification can dispatch without guessing.
type Hasher interface {
	// Name is the tag written in front of encoded hashes.
	Name() string
	// Hash encodes a plaintext password for storage.
	Hash(password string) (string, error)
	// Verify checks a plaintext password against an encoded hash stripped
	// of its tag. Returns model.ErrInvalidCredentials on mismatch.
	Verify(password, encoded string) error
}

// Bcrypt is the primary scheme.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Name() string { return "bcrypt" }

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = 12
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(h), nil
}

func (b Bcrypt) Verify(password, encoded string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)); err != nil {
		return model.ErrInvalidCredentials
	}
	return nil
}

// LegacySHA256 verifies salted-SHA256 hashes carried over from the old
// credential store ("<salt>$<hex digest>" after the tag). New hashes are
// never written with this scheme outside of migration tooling.
type LegacySHA256 struct{}

func (LegacySHA256) Name() string { return "sha256" }

func (LegacySHA256) Hash(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	return saltHex + "$" + digest(saltHex, password), nil
}

func (LegacySHA256) Verify(password, encoded string) error {
	salt, want, ok := strings.Cut(encoded, "$")
	if !ok {
		return model.ErrInvalidCredentials
	}
	if !hmac.Equal([]byte(digest(salt, password)), []byte(want)) {
		return model.ErrInvalidCredentials
	}
	return nil
}

func digest(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + ":" + password))
	return hex.EncodeToString(sum[:])
}

// Chain is a Hasher that writes with the primary scheme and verifies any
// scheme in the chain by dispatching on the hash tag. Untagged "$2a$…"
// values are treated as bcrypt so pre-migration rows keep verifying.
type Chain struct {
	primary  Hasher
	fallback []Hasher
}

func NewChain(primary Hasher, fallback ...Hasher) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

func (c *Chain) Name() string { return c.primary.Name() }

// Hash always uses the primary scheme and prepends its tag.
func (c *Chain) Hash(password string) (string, error) {
	encoded, err := c.primary.Hash(password)
	if err != nil {
		return "", err
	}
	return c.primary.Name() + "$" + encoded, nil
}

func (c *Chain) Verify(password, stored string) error {
	tag, rest, ok := strings.Cut(stored, "$")
	if !ok || tag == "" || looksLikeBcrypt(stored) {
		// Untagged hash from before the tagging migration.
		return c.dispatch("bcrypt", password, stored)
	}
	return c.dispatch(tag, password, rest)
}

func (c *Chain) dispatch(tag, password, encoded string) error {
	for _, h := range append([]Hasher{c.primary}, c.fallback...) {
		if h.Name() == tag {
			return h.Verify(password, encoded)
		}
	}
	return model.ErrInvalidCredentials
}

func looksLikeBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// Default builds the chain for the configured primary algorithm.
// Unrecognized names fall back to bcrypt.
func Default(algorithm string, bcryptCost int) *Chain {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "sha256":
		return NewChain(LegacySHA256{}, Bcrypt{Cost: bcryptCost})
	default:
		return NewChain(Bcrypt{Cost: bcryptCost}, LegacySHA256{})
	}
}

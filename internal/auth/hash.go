package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// HashParams are the Argon2id cost settings recorded in every hash.
type HashParams struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultHashParams follow the OWASP Argon2id baseline.
var DefaultHashParams = HashParams{Memory: 64 * 1024, Time: 3, Threads: 4, SaltLen: 16, KeyLen: 32}

// maxHashMemory caps the memory cost accepted from a stored hash.
const maxHashMemory = 1 << 20

var (
	ErrInvalidHash         = errors.New("invalid hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

var b64 = base64.RawStdEncoding

type argonHash struct {
	params HashParams
	salt   []byte
	key    []byte
}

func (h argonHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func parseArgonHash(encoded string) (argonHash, error) {
	var h argonHash
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return h, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return h, ErrInvalidHash
	}
	if version != argon2.Version {
		return h, ErrIncompatibleVersion
	}

	p := &h.params
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return h, ErrInvalidHash
	}
	if p.Memory == 0 || p.Memory > maxHashMemory || p.Time == 0 || p.Threads == 0 {
		return h, ErrInvalidHash
	}

	var err error
	if h.salt, err = b64.DecodeString(fields[4]); err != nil {
		return h, ErrInvalidHash
	}
	if h.key, err = b64.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, ErrInvalidHash
	}
	p.SaltLen, p.KeyLen = len(h.salt), uint32(len(h.key))
	return h, nil
}

// HashSecret hashes secret with DefaultHashParams.
func HashSecret(secret string) (string, error) {
	return HashSecretWith(secret, DefaultHashParams)
}

// HashSecretWith hashes secret with a fresh random salt and returns the
// PHC string, e.g. $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>.
func HashSecretWith(secret string, params HashParams) (string, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	return argonHash{params: params, salt: salt, key: key}.String(), nil
}

// VerifySecret checks secret against a stored hash using the cost
// settings recorded in that hash.
func VerifySecret(secret, encoded string) (bool, error) {
	h, err := parseArgonHash(encoded)
	if err != nil {
		return false, err
	}
	p := h.params
	got := argon2.IDKey([]byte(secret), h.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with settings other
// than params.
func NeedsRehash(encoded string, params HashParams) bool {
	h, err := parseArgonHash(encoded)
	if err != nil {
		return true
	}
	return h.params != params
}

// CacheKey maps a plaintext credential to a fixed-length Redis key
// fragment. It is a lookup key, not a stored credential.
func CacheKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:16])
}

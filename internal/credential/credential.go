// Package credential hashes and verifies user passwords.
//
// New credentials are bcrypt hashes. Werkzeug-style credentials
// ("pbkdf2:<hash>:<iterations>$<salt>$<hex>") written by earlier
// deployments still verify, and NeedsRehash flags them for an upgrade on
// the next successful login.
package credential

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Prefix = "pbkdf2:"

	// werkzeug 2.x default when the method string carries no iteration count
	defaultPBKDF2Iterations = 260000
)

var (
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("credential: empty password")
	// ErrPasswordTooLong is returned by Hash for plaintexts over 72 bytes.
	ErrPasswordTooLong = bcrypt.ErrPasswordTooLong
)

// Hasher creates and checks password credentials.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the given bcrypt cost. Out-of-range
// costs fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted, self-describing credential for plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify reports whether plaintext matches credential. Malformed or
// unknown credentials never match.
func (h *Hasher) Verify(plaintext, credential string) bool {
	if strings.HasPrefix(credential, pbkdf2Prefix) {
		return verifyPBKDF2(plaintext, credential)
	}
	err := bcrypt.CompareHashAndPassword([]byte(credential), []byte(plaintext))
	return err == nil
}

// NeedsRehash reports whether credential should be replaced by a fresh
// Hash of the same password: legacy PBKDF2 credentials and bcrypt hashes
// made with a different cost both qualify.
func (h *Hasher) NeedsRehash(credential string) bool {
	if strings.HasPrefix(credential, pbkdf2Prefix) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(credential))
	if err != nil {
		return false
	}
	return cost != h.cost
}

func verifyPBKDF2(plaintext, credential string) bool {
	parts := strings.SplitN(credential, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, want := parts[0], parts[1], parts[2]

	args := strings.Split(strings.TrimPrefix(method, pbkdf2Prefix), ":")
	newHash := hashFunc(args[0])
	if newHash == nil || len(args) > 2 {
		return false
	}

	iterations := defaultPBKDF2Iterations
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return false
		}
		iterations = n
	}

	wantBytes, err := hex.DecodeString(want)
	if err != nil || len(wantBytes) == 0 {
		return false
	}

	got := pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, newHash().Size(), newHash)
	return subtle.ConstantTimeCompare(got, wantBytes) == 1
}

func hashFunc(name string) func() hash.Hash {
	switch name {
	case "sha1":
		return sha1.New
	case "sha256":
		return sha256.New
	case "sha512":
		return sha512.New
	default:
		return nil
	}
}

package lockbox

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"

	"VeilKit/internal/core"
)

// KDFParams are the Argon2id cost parameters. They are stored in every
// container header so files written with older defaults stay readable.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memoryKiB"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams returns the release cost parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 2, MemoryKiB: 19456, Threads: 1}
}

const keyLen = 32

// DeriveKey derives the 256-bit master key from the passphrase and/or the
// keyfile digest. At least one of the two must be present. The keyfile
// digest is appended to the passphrase bytes before stretching, so a file
// locked with both can only be opened with both.
func DeriveKey(passphrase string, keyfileHash []byte, salt []byte, params KDFParams) ([]byte, error) {
	if passphrase == "" && len(keyfileHash) == 0 {
		return nil, core.ErrNoSecret
	}
	secret := make([]byte, 0, len(passphrase)+len(keyfileHash))
	secret = append(secret, passphrase...)
	secret = append(secret, keyfileHash...)
	return argon2.IDKey(secret, salt, params.Time, params.MemoryKiB, params.Threads, keyLen), nil
}

// HashKeyfile streams a keyfile from disk and returns its SHA-256 digest.
// The digest, not the raw content, feeds the KDF; keyfiles of any size work.
func HashKeyfile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyfile %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to read keyfile %s: %w", path, err)
	}
	return h.Sum(nil), nil
}

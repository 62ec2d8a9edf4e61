package lockbox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20"
)

// entropyReader returns the random source used for salts and nonces at lock
// time. Without extra entropy it is the OS CSPRNG. With extra entropy the
// caller's bytes are hashed together with OS randomness and the current time
// into a ChaCha20 keystream, so user input can only ever add entropy, never
// replace it. Unlock never needs this: everything derived from it is stored
// in the header.
func entropyReader(extra []byte) (io.Reader, error) {
	if len(extra) == 0 {
		return rand.Reader, nil
	}

	osRandom := make([]byte, 32)
	if _, err := rand.Read(osRandom); err != nil {
		return nil, fmt.Errorf("failed to read system entropy: %w", err)
	}

	h := sha256.New()
	h.Write(osRandom)
	h.Write(extra)
	var nanos [8]byte
	binary.LittleEndian.PutUint64(nanos[:], uint64(time.Now().UnixNano()))
	h.Write(nanos[:])
	seed := h.Sum(nil)

	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(seed, nonce[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize entropy stream: %w", err)
	}
	return &keystreamReader{cipher: cipher}, nil
}

// keystreamReader exposes a ChaCha20 keystream as an io.Reader.
type keystreamReader struct {
	cipher *chacha20.Cipher
}

func (r *keystreamReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// PerFileEntropy derives a distinct entropy block for one file of a batch,
// so every item in a multi-file lock gets an independent seed.
func PerFileEntropy(extra []byte, index int) []byte {
	if len(extra) == 0 {
		return nil
	}
	h := sha256.New()
	h.Write(extra)
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(index))
	h.Write(idx[:])
	return h.Sum(nil)
}

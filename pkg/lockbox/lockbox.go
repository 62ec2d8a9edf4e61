// Package lockbox implements the authenticated file container used by the
// lock and unlock operations. A locked file is a binary header carrying the
// KDF parameters followed by AES-256-GCM sealed chunks; the header bytes are
// bound to every chunk as associated data, so any modification anywhere in
// the container fails authentication.
package lockbox

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"VeilKit/internal/core"
)

const (
	// Extension is appended to locked files.
	Extension = ".qre"

	headerMagic   = "QREv"
	headerVersion = 1

	flagKeyfileRequired = 0x01

	chunkSize   = 1 << 20 // 1 MiB of plaintext per sealed chunk
	saltSize    = 16
	nonceSize   = 12
	gcmOverhead = 16
	maxNameLen  = 1024
)

// header is the plaintext preamble of a container. Everything in it is
// covered by the AEAD tags via associated data.
type header struct {
	Flags     uint8
	Params    KDFParams
	Salt      [saltSize]byte
	BaseNonce [nonceSize]byte
	Name      string
	PlainSize uint64
}

func (h *header) marshal() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(headerMagic)
	buf.WriteByte(headerVersion)
	buf.WriteByte(h.Flags)
	binary.Write(buf, binary.LittleEndian, h.Params.Time)
	binary.Write(buf, binary.LittleEndian, h.Params.MemoryKiB)
	buf.WriteByte(h.Params.Threads)
	buf.Write(h.Salt[:])
	buf.Write(h.BaseNonce[:])
	binary.Write(buf, binary.LittleEndian, uint16(len(h.Name)))
	buf.WriteString(h.Name)
	binary.Write(buf, binary.LittleEndian, h.PlainSize)
	return buf.Bytes()
}

// parseHeader reads and validates a container header. It returns the parsed
// header together with the exact serialized bytes, which callers need as
// associated data. Any malformation is reported as ErrIntegrity; a corrupt
// length field is indistinguishable from deliberate tampering.
func parseHeader(r io.Reader) (*header, []byte, error) {
	fixed := make([]byte, 4+1+1+4+4+1+saltSize+nonceSize+2)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, nil, core.ErrIntegrity
	}
	if string(fixed[:4]) != headerMagic {
		return nil, nil, core.ErrIntegrity
	}
	if fixed[4] != headerVersion {
		return nil, nil, core.ErrIntegrity
	}

	h := &header{Flags: fixed[5]}
	h.Params.Time = binary.LittleEndian.Uint32(fixed[6:10])
	h.Params.MemoryKiB = binary.LittleEndian.Uint32(fixed[10:14])
	h.Params.Threads = fixed[14]
	copy(h.Salt[:], fixed[15:15+saltSize])
	copy(h.BaseNonce[:], fixed[15+saltSize:15+saltSize+nonceSize])

	nameLen := binary.LittleEndian.Uint16(fixed[len(fixed)-2:])
	if nameLen > maxNameLen {
		return nil, nil, core.ErrIntegrity
	}
	tail := make([]byte, int(nameLen)+8)
	if _, err := io.ReadFull(r, tail); err != nil {
		return nil, nil, core.ErrIntegrity
	}
	h.Name = string(tail[:nameLen])
	h.PlainSize = binary.LittleEndian.Uint64(tail[nameLen:])

	raw := make([]byte, 0, len(fixed)+len(tail))
	raw = append(raw, fixed...)
	raw = append(raw, tail...)
	return h, raw, nil
}

// chunkNonce derives the nonce for one chunk by XOR-ing the chunk index into
// the last eight bytes of the base nonce. Nonces never repeat within a
// container and each container has its own random base.
func chunkNonce(base [nonceSize]byte, index uint64) []byte {
	nonce := make([]byte, nonceSize)
	copy(nonce, base[:])
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	for i := 0; i < 8; i++ {
		nonce[4+i] ^= idx[i]
	}
	return nonce
}

// chunkAAD binds the header and the chunk position into the seal, so chunks
// cannot be reordered, dropped or moved between containers.
func chunkAAD(headerBytes []byte, index uint64) []byte {
	aad := make([]byte, 0, len(headerBytes)+8)
	aad = append(aad, headerBytes...)
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	return append(aad, idx[:]...)
}

// Credentials carries the secrets for a lock or unlock operation.
// KeyfileHash is the SHA-256 digest of the keyfile (see HashKeyfile).
type Credentials struct {
	Passphrase  string
	KeyfileHash []byte
}

// LockOptions tunes a lock operation beyond the credentials.
type LockOptions struct {
	// ExtraEntropy strengthens salt and nonce generation. Optional; it is
	// never required again at unlock.
	ExtraEntropy []byte
	// Params overrides the KDF cost. Zero value means DefaultKDFParams.
	Params KDFParams
}

// ContainerInfo is what Inspect reveals without any credentials.
type ContainerInfo struct {
	Name            string    `json:"name"`
	PlainSize       uint64    `json:"plainSize"`
	KeyfileRequired bool      `json:"keyfileRequired"`
	Params          KDFParams `json:"params"`
}

// Engine performs lock and unlock operations. It holds no per-run state and
// is safe for concurrent use.
type Engine struct {
	log *zerolog.Logger
}

// NewEngine creates an Engine logging through the given logger.
func NewEngine(log *zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// Lock encrypts path into a new container next to it and returns the
// container path. The source file is left untouched. A lock that has started
// always runs to completion; batch cancellation applies between files.
func (e *Engine) Lock(_ context.Context, path string, creds Credentials, opts LockOptions) (string, error) {
	if creds.Passphrase == "" && len(creds.KeyfileHash) == 0 {
		return "", core.ErrNoSecret
	}

	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a regular file: %s", path)
	}

	params := opts.Params
	if params == (KDFParams{}) {
		params = DefaultKDFParams()
	}

	random, err := entropyReader(opts.ExtraEntropy)
	if err != nil {
		return "", err
	}

	h := &header{
		Params:    params,
		Name:      filepath.Base(path),
		PlainSize: uint64(info.Size()),
	}
	if len(creds.KeyfileHash) > 0 {
		h.Flags |= flagKeyfileRequired
	}
	if _, err := io.ReadFull(random, h.Salt[:]); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(random, h.BaseNonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := DeriveKey(creds.Passphrase, creds.KeyfileHash, h.Salt[:], params)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	headerBytes := h.marshal()

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	outPath := uniquePath(path + Extension)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".veilkit-lock-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(headerBytes); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	buf := make([]byte, chunkSize)
	var index uint64
	for {
		n, readErr := io.ReadFull(src, buf)
		if readErr == io.EOF && index > 0 {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			cleanup()
			return "", fmt.Errorf("failed to read %s: %w", path, readErr)
		}

		sealed := gcm.Seal(nil, chunkNonce(h.BaseNonce, index), buf[:n], chunkAAD(headerBytes, index))
		if err := writeChunk(tmp, sealed); err != nil {
			cleanup()
			return "", err
		}
		index++

		if n < chunkSize {
			break
		}
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to sync container: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close container: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize container: %w", err)
	}

	e.log.Info().Str("source", path).Str("container", outPath).Msg("file locked")
	return outPath, nil
}

// Unlock decrypts a container. Every chunk must authenticate and the total
// plaintext size must match the header before anything becomes visible: the
// plaintext is assembled in a hidden temp file and only renamed into place
// once the whole container verified. On success the container is deleted and
// the restored path returned. Wrong passphrase, wrong keyfile and a tampered
// container are deliberately indistinguishable. Like Lock, an unlock that
// has started always runs to completion.
func (e *Engine) Unlock(_ context.Context, path string, creds Credentials) (string, error) {
	if creds.Passphrase == "" && len(creds.KeyfileHash) == 0 {
		return "", core.ErrNoSecret
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	h, headerBytes, err := parseHeader(src)
	if err != nil {
		return "", err
	}

	key, err := DeriveKey(creds.Passphrase, creds.KeyfileHash, h.Salt[:], h.Params)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".veilkit-unlock-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	var total uint64
	var index uint64
	for {
		sealed, readErr := readChunk(src)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			cleanup()
			return "", core.ErrIntegrity
		}

		plain, err := gcm.Open(nil, chunkNonce(h.BaseNonce, index), sealed, chunkAAD(headerBytes, index))
		if err != nil {
			cleanup()
			return "", core.ErrIntegrity
		}
		if _, err := tmp.Write(plain); err != nil {
			cleanup()
			return "", fmt.Errorf("failed to write output: %w", err)
		}
		total += uint64(len(plain))
		index++
	}

	if index == 0 || total != h.PlainSize {
		cleanup()
		return "", core.ErrIntegrity
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close output: %w", err)
	}

	outPath := uniquePath(filepath.Join(dir, restoredName(h.Name, path)))
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to restore %s: %w", outPath, err)
	}

	if err := os.Remove(path); err != nil {
		e.log.Warn().Str("container", path).Err(err).Msg("could not remove container after unlock")
	}

	e.log.Info().Str("container", path).Str("restored", outPath).Msg("file unlocked")
	return outPath, nil
}

// Inspect reads the public part of a container without credentials.
func (e *Engine) Inspect(path string) (*ContainerInfo, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	h, _, err := parseHeader(src)
	if err != nil {
		return nil, err
	}
	return &ContainerInfo{
		Name:            restoredName(h.Name, path),
		PlainSize:       h.PlainSize,
		KeyfileRequired: h.Flags&flagKeyfileRequired != 0,
		Params:          h.Params,
	}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	return gcm, nil
}

func writeChunk(w io.Writer, sealed []byte) error {
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(sealed)))
	if _, err := w.Write(size[:]); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	if _, err := w.Write(sealed); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	return nil
}

func readChunk(r io.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(size[:])
	if n == 0 || n > chunkSize+gcmOverhead {
		return nil, fmt.Errorf("invalid chunk size %d", n)
	}
	sealed := make([]byte, n)
	if _, err := io.ReadFull(r, sealed); err != nil {
		return nil, err
	}
	return sealed, nil
}

// restoredName returns a safe file name to restore to. The stored name is
// reduced to its base component so a crafted container cannot write outside
// the directory of the container itself.
func restoredName(stored, containerPath string) string {
	name := filepath.Base(stored)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = strings.TrimSuffix(filepath.Base(containerPath), Extension)
	}
	return name
}

// uniquePath appends " (n)" before the extension until the path is free,
// so locking or unlocking never overwrites an existing file.
func uniquePath(path string) string {
	if _, err := os.Lstat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, counter, ext)
		if _, err := os.Lstat(candidate); err != nil {
			return candidate
		}
	}
}

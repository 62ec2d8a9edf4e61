package lockbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VeilKit/internal/core"
)

// testParams keeps the KDF cheap so tests stay fast.
var testParams = KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}

func testEngine() *Engine {
	log := zerolog.Nop()
	return NewEngine(&log)
}

func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestLockUnlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()

	content := []byte("the quick brown fox")
	src := writeTestFile(t, dir, "note.txt", content)

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "hunter2"}, LockOptions{Params: testParams})
	require.NoError(t, err)
	assert.Equal(t, src+Extension, container)

	// The original is untouched by lock.
	original, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, content, original)

	restored, err := engine.Unlock(ctx, container, Credentials{Passphrase: "hunter2"})
	require.NoError(t, err)

	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// The container is consumed by a successful unlock.
	_, err = os.Stat(container)
	assert.True(t, os.IsNotExist(err))
}

func TestLockRequiresSecret(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	src := writeTestFile(t, dir, "note.txt", []byte("data"))

	_, err := engine.Lock(context.Background(), src, Credentials{}, LockOptions{Params: testParams})
	assert.ErrorIs(t, err, core.ErrNoSecret)
}

func TestUnlockWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "note.txt", []byte("secret data"))

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "right"}, LockOptions{Params: testParams})
	require.NoError(t, err)

	before := listDir(t, dir)
	_, err = engine.Unlock(ctx, container, Credentials{Passphrase: "wrong"})
	assert.ErrorIs(t, err, core.ErrIntegrity)

	// No plaintext appears on failure and the container survives.
	assert.Equal(t, before, listDir(t, dir))
}

func TestUnlockTamperedCiphertext(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "note.txt", []byte("do not touch"))

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "pw"}, LockOptions{Params: testParams})
	require.NoError(t, err)

	data, err := os.ReadFile(container)
	require.NoError(t, err)
	data[len(data)-1] ^= 0x01
	require.NoError(t, os.WriteFile(container, data, 0644))

	_, err = engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	assert.ErrorIs(t, err, core.ErrIntegrity)
}

func TestUnlockTamperedHeader(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "note.txt", []byte("header bound"))

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "pw"}, LockOptions{Params: testParams})
	require.NoError(t, err)

	// Flip a bit in the stored file name; the header is associated data.
	data, err := os.ReadFile(container)
	require.NoError(t, err)
	data[47] ^= 0x01
	require.NoError(t, os.WriteFile(container, data, 0644))

	_, err = engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	assert.ErrorIs(t, err, core.ErrIntegrity)
}

func TestUnlockTruncatedContainer(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "note.txt", []byte("truncate me"))

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "pw"}, LockOptions{Params: testParams})
	require.NoError(t, err)

	data, err := os.ReadFile(container)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(container, data[:len(data)-5], 0644))

	_, err = engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	assert.ErrorIs(t, err, core.ErrIntegrity)
}

func TestKeyfileBinding(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "note.txt", []byte("keyfile bound"))
	keyfile := writeTestFile(t, dir, "key.bin", []byte("random keyfile material"))

	hash, err := HashKeyfile(keyfile)
	require.NoError(t, err)

	container, err := engine.Lock(ctx, src,
		Credentials{Passphrase: "pw", KeyfileHash: hash},
		LockOptions{Params: testParams})
	require.NoError(t, err)

	// Passphrase alone is not enough.
	_, err = engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	assert.ErrorIs(t, err, core.ErrIntegrity)

	// A different keyfile fails the same way.
	otherHash, err := HashKeyfile(writeTestFile(t, dir, "other.bin", []byte("different material")))
	require.NoError(t, err)
	_, err = engine.Unlock(ctx, container, Credentials{Passphrase: "pw", KeyfileHash: otherHash})
	assert.ErrorIs(t, err, core.ErrIntegrity)

	restored, err := engine.Unlock(ctx, container, Credentials{Passphrase: "pw", KeyfileHash: hash})
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, []byte("keyfile bound"), got)
}

func TestExtraEntropyNotNeededAtUnlock(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "note.txt", []byte("entropy test"))

	container, err := engine.Lock(ctx, src,
		Credentials{Passphrase: "pw"},
		LockOptions{Params: testParams, ExtraEntropy: []byte("dice rolls and mouse wiggles")})
	require.NoError(t, err)

	restored, err := engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, []byte("entropy test"), got)
}

func TestCancelledContextDoesNotInterruptFile(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()

	// Cancellation is a batch-level concern: a lock or unlock that has
	// started must run to completion even under a cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	content := []byte("finish what you started")
	src := writeTestFile(t, dir, "note.txt", content)

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "pw"}, LockOptions{Params: testParams})
	require.NoError(t, err)
	_, err = os.Stat(container)
	require.NoError(t, err)

	restored, err := engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestEmptyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "empty.txt", nil)

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "pw"}, LockOptions{Params: testParams})
	require.NoError(t, err)

	restored, err := engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMultiChunkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()

	// Spans three chunks with a partial tail.
	content := make([]byte, 2*chunkSize+1234)
	for i := range content {
		content[i] = byte(i % 251)
	}
	src := writeTestFile(t, dir, "big.bin", content)

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "pw"}, LockOptions{Params: testParams})
	require.NoError(t, err)

	restored, err := engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUnlockRestoresOriginalName(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "report.pdf", []byte("pdf bytes"))

	container, err := engine.Lock(ctx, src, Credentials{Passphrase: "pw"}, LockOptions{Params: testParams})
	require.NoError(t, err)

	// The original still exists, so the restore gets a " (1)" suffix
	// instead of overwriting it.
	restored, err := engine.Unlock(ctx, container, Credentials{Passphrase: "pw"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report (1).pdf"), restored)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	ctx := context.Background()
	src := writeTestFile(t, dir, "doc.txt", []byte("12345"))

	hash, err := HashKeyfile(writeTestFile(t, dir, "key.bin", []byte("kf")))
	require.NoError(t, err)

	container, err := engine.Lock(ctx, src,
		Credentials{Passphrase: "pw", KeyfileHash: hash},
		LockOptions{Params: testParams})
	require.NoError(t, err)

	info, err := engine.Inspect(container)
	require.NoError(t, err)
	assert.Equal(t, "doc.txt", info.Name)
	assert.Equal(t, uint64(5), info.PlainSize)
	assert.True(t, info.KeyfileRequired)
	assert.Equal(t, testParams, info.Params)
}

func TestInspectRejectsNonContainer(t *testing.T) {
	dir := t.TempDir()
	engine := testEngine()
	src := writeTestFile(t, dir, "plain.txt", []byte("not a container at all, just text"))

	_, err := engine.Inspect(src)
	assert.ErrorIs(t, err, core.ErrIntegrity)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := make([]byte, saltSize)
	k1, err := DeriveKey("pw", nil, salt, testParams)
	require.NoError(t, err)
	k2, err := DeriveKey("pw", nil, salt, testParams)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := DeriveKey("pw", []byte("hash"), salt, testParams)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

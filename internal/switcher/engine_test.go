package switcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/githubbzxs/codex-switch/internal/apperr"
	"github.com/githubbzxs/codex-switch/internal/cliproc"
	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/crypto"
	"github.com/githubbzxs/codex-switch/internal/store"
	"github.com/githubbzxs/codex-switch/internal/vault"
)

var testKDF = config.KDFParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1}

type testEnv struct {
	engine *Engine
	store  *store.Store
	vault  *vault.Manager
	auth   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	v := vault.NewManager(s, testKDF)
	require.NoError(t, v.Init("hunter22!"))

	dir := t.TempDir()
	auth := filepath.Join(dir, "codex", "auth.json")
	engine := NewEngine(s, v, cliproc.NewAdapter(), auth, filepath.Join(dir, "snapshots"), time.Second)
	return &testEnv{engine: engine, store: s, vault: v, auth: auth}
}

func writeAuthFile(t *testing.T, path, token string) []byte {
	t.Helper()
	content := []byte(`{"tokens":{"access_token":"` + token + `"}}`)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return content
}

func importAccount(t *testing.T, env *testEnv, name, token string) *store.Account {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.json")
	writeAuthFile(t, path, token)
	account, err := env.engine.ImportFromFile(path, name, nil)
	require.NoError(t, err)
	return account
}

func TestImportFromFile(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "a.json")
	content := writeAuthFile(t, path, "xyz")

	account, err := env.engine.ImportFromFile(path, "Work", []string{"team"})
	require.NoError(t, err)

	wantFP, err := crypto.Fingerprint(content)
	require.NoError(t, err)
	assert.Equal(t, wantFP, account.AuthFingerprint)
	assert.Len(t, account.AuthFingerprint, 16)
	assert.Equal(t, "Work", account.Name)
	assert.Equal(t, []string{"team"}, account.Tags)

	// The stored ciphertext decrypts back to the imported bytes.
	plaintext, err := env.vault.Unwrap(account.AuthCiphertext)
	require.NoError(t, err)
	assert.Equal(t, content, plaintext)
}

func TestImportRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	importAccount(t, env, "first", "same-token")

	path := filepath.Join(t.TempDir(), "dup.json")
	writeAuthFile(t, path, "same-token")
	_, err := env.engine.ImportFromFile(path, "second", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicate), "got %v", err)
}

func TestImportNameFallbacks(t *testing.T) {
	env := newTestEnv(t)

	write := func(body string) string {
		path := filepath.Join(t.TempDir(), "auth.json")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	withEmail, err := env.engine.ImportFromFile(
		write(`{"email":"alice@example.com","tokens":{"access_token":"t1"}}`), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", withEmail.Name)

	withAccountID, err := env.engine.ImportFromFile(
		write(`{"account_id":"acc-9","tokens":{"access_token":"t2"}}`), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "acc-9", withAccountID.Name)

	bare, err := env.engine.ImportFromFile(
		write(`{"tokens":{"access_token":"t3"}}`), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Account-"+bare.AuthFingerprint[:8], bare.Name)
}

func TestImportRejectsInvalidAuth(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tokens":{}}`), 0o600))

	_, err := env.engine.ImportFromFile(path, "x", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)

	_, err = env.engine.ImportFromFile(filepath.Join(t.TempDir(), "missing.json"), "x", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestSwitchFirstTime(t *testing.T) {
	env := newTestEnv(t)
	account := importAccount(t, env, "a", "token-a")

	res, err := env.engine.Switch(context.Background(), account.ID, false)
	require.NoError(t, err)
	assert.Nil(t, res.SnapshotPath, "no live file existed, snapshot must be null")

	live, err := os.ReadFile(env.auth)
	require.NoError(t, err)
	plaintext, err := env.vault.Unwrap(account.AuthCiphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, live, "live file must byte-equal the account plaintext")

	history, err := env.store.ListSwitchHistory(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, store.SwitchResultSuccess, history[0].Result)
	require.NotNil(t, history[0].ToAccountID)
	assert.Equal(t, account.ID, *history[0].ToAccountID)
	assert.Nil(t, history[0].FromAccountID)

	got, err := env.store.GetAccount(account.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastUsedAt)
}

func TestSwitchSnapshotsPreviousLiveFile(t *testing.T) {
	env := newTestEnv(t)
	a := importAccount(t, env, "a", "token-a")
	b := importAccount(t, env, "b", "token-b")

	_, err := env.engine.Switch(context.Background(), a.ID, false)
	require.NoError(t, err)
	preSwitch, err := os.ReadFile(env.auth)
	require.NoError(t, err)

	res, err := env.engine.Switch(context.Background(), b.ID, false)
	require.NoError(t, err)
	require.NotNil(t, res.SnapshotPath)

	snapshot, err := os.ReadFile(*res.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, preSwitch, snapshot, "snapshot must equal the pre-switch live content")

	history, err := env.store.ListSwitchHistory(1)
	require.NoError(t, err)
	require.NotNil(t, history[0].FromAccountID)
	assert.Equal(t, a.ID, *history[0].FromAccountID)
}

func TestSwitchSameAccountTwice(t *testing.T) {
	env := newTestEnv(t)
	a := importAccount(t, env, "a", "token-a")

	_, err := env.engine.Switch(context.Background(), a.ID, false)
	require.NoError(t, err)
	first, err := os.ReadFile(env.auth)
	require.NoError(t, err)

	_, err = env.engine.Switch(context.Background(), a.ID, false)
	require.NoError(t, err)
	second, err := os.ReadFile(env.auth)
	require.NoError(t, err)

	assert.Equal(t, first, second, "second switch is a no-op on the live file")

	history, err := env.store.ListSwitchHistory(10)
	require.NoError(t, err)
	assert.Len(t, history, 2, "history is still appended")
}

func TestRollbackRestoresPreviousAccount(t *testing.T) {
	env := newTestEnv(t)
	a := importAccount(t, env, "a", "token-a")
	b := importAccount(t, env, "b", "token-b")

	_, err := env.engine.Switch(context.Background(), a.ID, false)
	require.NoError(t, err)
	contentA, err := os.ReadFile(env.auth)
	require.NoError(t, err)

	switchB, err := env.engine.Switch(context.Background(), b.ID, false)
	require.NoError(t, err)

	res, err := env.engine.Rollback(context.Background(), switchB.HistoryID)
	require.NoError(t, err)

	live, err := os.ReadFile(env.auth)
	require.NoError(t, err)
	assert.Equal(t, contentA, live, "rollback must restore the pre-switch content")

	row, err := env.store.GetSwitchHistory(res.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, store.SwitchResultRolledBack, row.Result)
	require.NotNil(t, row.FromAccountID)
	assert.Equal(t, b.ID, *row.FromAccountID)
	require.NotNil(t, row.ToAccountID)
	assert.Equal(t, a.ID, *row.ToAccountID)

	// The rollback source snapshot survives for later replays.
	_, err = os.Stat(*switchB.SnapshotPath)
	assert.NoError(t, err)
}

func TestRollbackWithoutSnapshot(t *testing.T) {
	env := newTestEnv(t)
	a := importAccount(t, env, "a", "token-a")

	// First switch has no prior live file, so its history row has no snapshot.
	res, err := env.engine.Switch(context.Background(), a.ID, false)
	require.NoError(t, err)

	_, err = env.engine.Rollback(context.Background(), res.HistoryID)
	assert.True(t, apperr.IsKind(err, apperr.KindNoSnapshot), "got %v", err)

	_, err = env.engine.Rollback(context.Background(), "missing-id")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestSwitchRequiresUnlockedVault(t *testing.T) {
	env := newTestEnv(t)
	a := importAccount(t, env, "a", "token-a")
	require.NoError(t, env.vault.Lock())

	_, err := env.engine.Switch(context.Background(), a.ID, false)
	assert.True(t, apperr.IsKind(err, apperr.KindVaultLocked), "got %v", err)
}

func TestSwitchUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Switch(context.Background(), "nope", false)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestParseAuthDocument(t *testing.T) {
	doc, err := ParseAuthDocument([]byte(`{"tokens":{"access_token":"abc","account_id":"acc"},"email":"a@b.c"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", doc.AccessToken())
	assert.Equal(t, "acc", doc.AccountID())
	assert.Equal(t, "a@b.c", doc.Email())

	flat, err := ParseAuthDocument([]byte(`{"access_token":"xyz"}`))
	require.NoError(t, err)
	assert.Equal(t, "xyz", flat.AccessToken())

	_, err = ParseAuthDocument([]byte(`not json`))
	assert.Error(t, err)
	_, err = ParseAuthDocument([]byte(`{"tokens":{}}`))
	assert.Error(t, err)
}

func TestAtomicWriteReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.json")

	require.NoError(t, atomicWrite(path, []byte("first")))
	require.NoError(t, atomicWrite(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSnapshotNameShape(t *testing.T) {
	name := snapshotName(time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC))
	assert.Regexp(t, `^20260301T123045Z-[0-9a-f]{6}\.json$`, name)
}

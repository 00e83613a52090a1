// ABOUTME: Tests for the crypto store helpers
// ABOUTME: Covers user ID slugs, store key derivation, and device ID mismatch detection

package matrix

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@envision:example.org", "envision_example.org"},
		{"@bot-1:matrix.example.com:8448", "bot-1_matrix.example.com_8448"},
		{"plain", "plain"},
		{"@we/ird:host", "weird_host"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}

func TestDeriveStoreKey(t *testing.T) {
	a1, err := deriveStoreKey("@a:example.org")
	require.NoError(t, err)
	a2, err := deriveStoreKey("@a:example.org")
	require.NoError(t, err)
	b, err := deriveStoreKey("@b:example.org")
	require.NoError(t, err)

	assert.Len(t, a1, 32)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
}

func TestCheckDeviceIDMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crypto.db")

	mismatch, err := checkDeviceIDMismatch(dbPath, "DEVICE1")
	require.NoError(t, err)
	assert.False(t, mismatch, "missing database is not a mismatch")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE crypto_account (device_id TEXT)")
	require.NoError(t, err)

	mismatch, err = checkDeviceIDMismatch(dbPath, "DEVICE1")
	require.NoError(t, err)
	assert.False(t, mismatch, "empty account table is not a mismatch")

	_, err = db.Exec("INSERT INTO crypto_account (device_id) VALUES ('DEVICE1')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	mismatch, err = checkDeviceIDMismatch(dbPath, "DEVICE1")
	require.NoError(t, err)
	assert.False(t, mismatch)

	mismatch, err = checkDeviceIDMismatch(dbPath, "DEVICE2")
	require.NoError(t, err)
	assert.True(t, mismatch)

	require.NoError(t, removeDatabase(dbPath))
	mismatch, err = checkDeviceIDMismatch(dbPath, "DEVICE2")
	require.NoError(t, err)
	assert.False(t, mismatch)
}

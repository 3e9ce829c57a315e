package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, LoadConfig("")) })

	require.NoError(t, LoadConfig(""))
	c := Config()
	assert.Equal(t, 3, c.PublishRetries)
	assert.Equal(t, 128, c.TemplateCacheSize)
	assert.Equal(t, 5*time.Second, c.ProbeTimeoutDuration())
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, LoadConfig("")) })

	path := filepath.Join(t.TempDir(), "procline.toml")
	content := `
key_encryption_passwd = "file-pass"
probe_timeout = "10s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, LoadConfig(path))

	c := Config()
	assert.Equal(t, "file-pass", c.KeyEncryptionPasswd)
	assert.Equal(t, 10*time.Second, c.ProbeTimeoutDuration())
	// Keys the file omits keep their defaults
	assert.Equal(t, 3, c.PublishRetries)
	assert.Equal(t, 128, c.TemplateCacheSize)
}

func TestLoadConfigMissingFile(t *testing.T) {
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "absent.toml")))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"5s", 5 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"1h", time.Hour, false},
		{"3d", 72 * time.Hour, false},
		{"", 0, true},
		{"s", 0, true},
		{"5x", 0, true},
		{"abc", 0, true},
	}
	for _, test := range tests {
		d, err := ParseDuration(test.input)
		if test.wantErr {
			assert.Error(t, err, "expected error for input '%s'", test.input)
		} else {
			require.NoError(t, err, "unexpected error for input '%s'", test.input)
			assert.Equal(t, test.expected, d)
		}
	}
}

package operations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSettings(t *testing.T) {
	t.Run("ReadsFromFile", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "scrapedash.yml")
		require.NoError(t, os.WriteFile(fn, []byte("api_url: https://api.example.com\ntoken: abc\n"), 0600))

		conf, err := NewClientSettings(fn)
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com", conf.APIURL)
		assert.Equal(t, "abc", conf.Token)
		assert.Equal(t, fn, conf.LoadedFrom)
	})
	t.Run("RequiresFields", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "scrapedash.yml")
		require.NoError(t, os.WriteFile(fn, []byte("api_url: ftp://api.example.com\n"), 0600))

		_, err := NewClientSettings(fn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token must be set")
		assert.Contains(t, err.Error(), "invalid api_url")
	})
	t.Run("WriteRoundTrips", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "out.yml")
		conf := &ClientSettings{APIURL: "http://localhost:8080", Token: "tok"}
		require.NoError(t, conf.Write(fn))

		info, err := os.Stat(fn)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		loaded, err := NewClientSettings(fn)
		require.NoError(t, err)
		assert.Equal(t, conf.APIURL, loaded.APIURL)
		assert.Equal(t, conf.Token, loaded.Token)
	})
	t.Run("WriteNeedsLocation", func(t *testing.T) {
		assert.Error(t, (&ClientSettings{}).Write(""))
	})
}

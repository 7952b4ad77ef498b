package tokencache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/jrsteele09/go-onedrive-upload/tokencache"
	"github.com/stretchr/testify/require"
)

// libraryCache stands in for the identity library's in-memory cache.
type libraryCache struct {
	Accounts map[string]string `json:"accounts"`
	Tokens   map[string]string `json:"tokens"`
}

func (l *libraryCache) Marshal() ([]byte, error) {
	return json.Marshal(l)
}

func (l *libraryCache) Unmarshal(b []byte) error {
	return json.Unmarshal(b, l)
}

type failingMarshaler struct{}

func (failingMarshaler) Marshal() ([]byte, error) {
	return nil, errors.New("boom")
}

func TestCache_EmptyReplaceIsNoop(t *testing.T) {
	c := tokencache.Deserialize(nil)
	lib := &libraryCache{}

	require.NoError(t, c.Replace(context.Background(), lib, cache.ReplaceHints{}))
	require.Nil(t, lib.Accounts)
	require.True(t, c.IsEmpty())
	require.False(t, c.HasChanged())
}

func TestCache_RoundTrip(t *testing.T) {
	original := &libraryCache{
		Accounts: map[string]string{"uid.utid": "john.doe@example.com"},
		Tokens:   map[string]string{"uid.utid-access": "token-1", "uid.utid-refresh": "refresh-1"},
	}

	c := tokencache.New()
	require.NoError(t, c.Export(context.Background(), original, cache.ExportHints{}))
	require.True(t, c.HasChanged())

	restored := tokencache.Deserialize(c.Serialize())
	require.False(t, restored.HasChanged())

	lib := &libraryCache{}
	require.NoError(t, restored.Replace(context.Background(), lib, cache.ReplaceHints{}))
	require.Equal(t, original, lib)
}

func TestCache_ExportSameBytesIsNotAChange(t *testing.T) {
	lib := &libraryCache{Accounts: map[string]string{"a": "b"}}
	blob, err := lib.Marshal()
	require.NoError(t, err)

	c := tokencache.Deserialize(blob)
	require.NoError(t, c.Export(context.Background(), lib, cache.ExportHints{}))
	require.False(t, c.HasChanged())

	lib.Tokens = map[string]string{"a-access": "rotated"}
	require.NoError(t, c.Export(context.Background(), lib, cache.ExportHints{}))
	require.True(t, c.HasChanged())
}

func TestCache_SerializeReturnsCopy(t *testing.T) {
	c := tokencache.Deserialize([]byte(`{"accounts":{}}`))
	blob := c.Serialize()
	blob[0] = 'X'
	require.Equal(t, `{"accounts":{}}`, string(c.Serialize()))
}

func TestCache_Errors(t *testing.T) {
	c := tokencache.Deserialize([]byte("not json"))

	err := c.Replace(context.Background(), &libraryCache{}, cache.ReplaceHints{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "tokencache: unmarshal")

	err = c.Export(context.Background(), failingMarshaler{}, cache.ExportHints{})
	require.Error(t, err)
	require.False(t, c.HasChanged())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Replace(ctx, &libraryCache{}, cache.ReplaceHints{}), context.Canceled)
}

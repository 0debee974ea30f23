package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	puts map[string][]byte
	ct   string
}

func (f *fakeWriter) Put(_ context.Context, bucket, object, contentType string, data []byte) error {
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[bucket+"/"+object] = data
	f.ct = contentType
	return nil
}

func TestSink_LocalDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	sink, err := NewSink(dir, nil)
	require.NoError(t, err)

	loc, err := sink.Write(context.Background(), "mars.xlsx", "application/octet-stream", []byte("wb"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mars.xlsx"), loc)

	got, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("wb"), got)
}

func TestSink_CloudStorage(t *testing.T) {
	tests := []struct {
		dest string
		want string
	}{
		{dest: "gs://exports", want: "gs://exports/mars.xlsx"},
		{dest: "gs://exports/2024/", want: "gs://exports/2024/mars.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			w := &fakeWriter{}
			sink, err := NewSink(tt.dest, w)
			require.NoError(t, err)

			loc, err := sink.Write(context.Background(), "mars.xlsx", "application/x", []byte("wb"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc)
			assert.Len(t, w.puts, 1)
			assert.Equal(t, "application/x", w.ct)
		})
	}
}

func TestSink_CloudStorageWithoutClient(t *testing.T) {
	_, err := NewSink("gs://exports", nil)
	assert.ErrorIs(t, err, ErrNoObjectFetcher)
}

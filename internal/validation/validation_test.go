package validation

import (
	"bytes"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["file"][0]
}

func TestValidateFile_Audio(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		mime     string
	}{
		{"mp3", "beat.mp3", append([]byte("ID3\x03\x00\x00\x00"), make([]byte, 64)...), "audio/mpeg"},
		{"wav", "beat.WAV", append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 64)...), "audio/wave"},
		{"aiff", "beat.aiff", append([]byte("FORM\x00\x00\x00\x00AIFFCOMM"), make([]byte, 64)...), "audio/aiff"},
		{"ogg", "beat.ogg", append([]byte("OggS\x00\x02"), make([]byte, 64)...), "application/ogg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mimeType, err := ValidateFile(fileHeader(t, tt.filename, tt.content), AudioConstraints)
			require.NoError(t, err)
			assert.Equal(t, tt.mime, mimeType)
		})
	}
}

func TestValidateFile_Rejects(t *testing.T) {
	mp3 := append([]byte("ID3\x03\x00"), make([]byte, 64)...)

	t.Run("wrong extension", func(t *testing.T) {
		_, err := ValidateFile(fileHeader(t, "beat.exe", mp3), AudioConstraints)
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("content is not audio", func(t *testing.T) {
		_, err := ValidateFile(fileHeader(t, "beat.mp3", []byte("<html><body>hi</body></html>")), AudioConstraints)
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ValidateFile(fileHeader(t, "beat.mp3", nil), AudioConstraints)
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := ValidateFile(fileHeader(t, "beat.mp3", mp3), AudioConstraints.WithMaxSize(10))
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ValidateFile(nil, AudioConstraints)
		assert.ErrorIs(t, err, ErrInvalidFile)
	})
}

func TestValidateTitle(t *testing.T) {
	title, err := ValidateTitle("  Night Drive  ")
	require.NoError(t, err)
	assert.Equal(t, "Night Drive", title)

	_, err = ValidateTitle("   ")
	assert.ErrorIs(t, err, ErrInvalidTitle)

	_, err = ValidateTitle(strings.Repeat("a", 201))
	assert.ErrorIs(t, err, ErrInvalidTitle)

	// Length counts characters, not bytes
	_, err = ValidateTitle(strings.Repeat("é", 200))
	assert.NoError(t, err)
}

func TestParsePrice(t *testing.T) {
	valid := map[string]int64{
		"0":      0,
		"5":      500,
		"19.99":  1999,
		"19.9":   1990,
		".50":    50,
		" 7.05 ": 705,
	}
	for in, want := range valid {
		got, err := ParsePrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	invalid := []string{"", "-1", "1.999", "abc", "1.", "1,50", "1e3", "+5", "99999999999999999999"}
	for _, in := range invalid {
		_, err := ParsePrice(in)
		assert.ErrorIs(t, err, ErrInvalidPrice, in)
	}
}

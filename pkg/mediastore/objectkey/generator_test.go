package objectkey

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeBasedGenerator(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	t.Run("Format", func(t *testing.T) {
		gen := NewTimeBasedGenerator("media")
		key := gen.GenerateKey(now, "photo.JPG")

		require.Regexp(t, regexp.MustCompile(`^media/2026/03/14-092653-[0-9a-f]{8}\.jpg$`), key)
	})

	t.Run("NoPrefix", func(t *testing.T) {
		gen := NewTimeBasedGenerator("")
		key := gen.GenerateKey(now, "clip.mp4")

		assert.Regexp(t, `^2026/03/14-092653-[0-9a-f]{8}\.mp4$`, key)
	})

	t.Run("KeysDifferWithinSameSecond", func(t *testing.T) {
		gen := NewTimeBasedGenerator("media")
		a := gen.GenerateKey(now, "a.png")
		b := gen.GenerateKey(now, "a.png")
		assert.NotEqual(t, a, b)
	})

	t.Run("NonUTCInputNormalized", func(t *testing.T) {
		gen := NewTimeBasedGenerator("media")
		local := now.In(time.FixedZone("UTC+5", 5*3600))
		key := gen.GenerateKey(local, "a.png")
		assert.Contains(t, key, "2026/03/14-092653")
	})
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"simple", "photo.jpg", ".jpg"},
		{"uppercased", "PHOTO.JPG", ".jpg"},
		{"none", "README", ""},
		{"trailing dot", "weird.", ""},
		{"nested path", "a/b/c/archive.tar.gz", ".gz"},
		{"unsafe characters", "shell.sh;rm", ""},
		{"unicode", "файл.päng", ""},
		{"numeric", "backup.7z", ".7z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extension(tt.filename))
		})
	}
}

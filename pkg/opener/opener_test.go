// pkg/opener/opener_test.go

package opener

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", "a.pdf"}},
		{"darwin", "open", []string{"a.pdf"}},
		{"linux", "xdg-open", []string{"a.pdf"}},
		{"freebsd", "xdg-open", []string{"a.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := command(tt.goos, "a.pdf")
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestOpen_Missing(t *testing.T) {
	err := Open(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, ErrMissing)
}

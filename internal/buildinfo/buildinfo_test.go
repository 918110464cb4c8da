package buildinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextBuildDate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{"nil context", nil, UnknownValue},
		{"empty date", NewContext("1.0.0", ""), UnknownValue},
		{"valid date", NewContext("1.0.0", "2026-03-14T10:00:00Z"), "2026-03-14T10:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ctx.GetBuildDate())
		})
	}
}

func TestContextVersion(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1.0.0-beta.1", NewContext("1.0.0-beta.1", "").GetVersion())
	assert.Equal(t, "ppe-go@1.2.0", NewContext("1.2.0", "").Release())

	// test binaries carry no module version
	assert.Equal(t, UnknownValue, NewContext("", "").GetVersion())
}

func TestContextString(t *testing.T) {
	t.Parallel()
	s := NewContext("1.2.0", "today").String()
	assert.True(t, strings.HasPrefix(s, "ppe-go 1.2.0 (built today, "))
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}

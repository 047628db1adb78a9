package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGetters(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want [3]string
	}{
		{
			name: "nil context",
			ctx:  nil,
			want: [3]string{UnknownValue, UnknownValue, UnknownValue},
		},
		{
			name: "empty fields",
			ctx:  NewContext("", "", ""),
			want: [3]string{UnknownValue, UnknownValue, UnknownValue},
		},
		{
			name: "all set",
			ctx:  NewContext("1.0.0-beta.1", "2026-03-01T10:30:00Z", "zoo-east-2"),
			want: [3]string{"1.0.0-beta.1", "2026-03-01T10:30:00Z", "zoo-east-2"},
		},
		{
			name: "partial",
			ctx:  NewContext("1.0.0+build.123", "", "zoo-east-2"),
			want: [3]string{"1.0.0+build.123", UnknownValue, "zoo-east-2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info BuildInfo = tt.ctx
			assert.Equal(t, tt.want[0], info.GetVersion())
			assert.Equal(t, tt.want[1], info.GetBuildDate())
			assert.Equal(t, tt.want[2], info.GetSystemID())
		})
	}
}

func BenchmarkContextVersion(b *testing.B) {
	ctx := NewContext("1.0.0", "2026-01-01", "bench")
	for b.Loop() {
		_ = ctx.GetVersion()
	}
}

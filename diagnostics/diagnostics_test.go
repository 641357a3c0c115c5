package diagnostics_test

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/errnotify/diagnostics"
)

func TestProviderCapturesOnce(t *testing.T) {
	p := diagnostics.NewProvider()

	first := p.Capture()
	second := p.Capture()

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, runtime.GOOS, first.OSName)
	assert.Equal(t, runtime.GOARCH, first.OSArch)
	assert.Equal(t, runtime.Version(), first.GoVersion)
	assert.Equal(t, os.Getpid(), first.PID)
	assert.False(t, first.StartedAt.IsZero())
}

func TestLocale(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "lang with encoding", env: map[string]string{"LC_ALL": "", "LC_MESSAGES": "", "LANG": "en_US.UTF-8"}, want: "en_US"},
		{name: "lc_all wins", env: map[string]string{"LC_ALL": "de_DE@euro", "LANG": "en_US.UTF-8"}, want: "de_DE"},
		{name: "posix ignored", env: map[string]string{"LC_ALL": "C", "LC_MESSAGES": "", "LANG": ""}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, diagnostics.NewProvider().Capture().Locale)
		})
	}
}

func TestStatic(t *testing.T) {
	s := &diagnostics.Snapshot{Hostname: "box"}
	assert.Same(t, s, diagnostics.Static(s).Capture())
}

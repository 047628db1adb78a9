package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/zoolog/internal/buildinfo"
)

func TestVersionSkipsConfig(t *testing.T) {
	root := RootCommand(buildinfo.NewContext("3.1.0", "2026-05-02", ""))
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version", "--config", "/nonexistent/dir/config.yaml"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "zoolog 3.1.0 (built 2026-05-02")
}

func TestSubcommandsRegistered(t *testing.T) {
	root := RootCommand(&buildinfo.Context{})
	for _, name := range []string{"serve", "log", "login", "logout", "whoami", "animals", "sos", "devices", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

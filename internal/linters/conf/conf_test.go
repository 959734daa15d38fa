//go:build enable_linters

package conf

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/mp4remuxer/internal/conf"
)

const samplePath = "../../../remuxer.yml"

func TestConfBooleans(t *testing.T) {
	buf, err := os.ReadFile(samplePath)
	require.NoError(t, err)

	for _, line := range strings.Split(string(buf), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}

		_, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		val = strings.ToLower(strings.TrimSpace(val))
		if val == "yes" || val == "no" || val == "on" || val == "off" || val == "y" || val == "n" {
			t.Errorf("deprecated bool value '%v'", line)
		}
	}
}

func TestConfDefaults(t *testing.T) {
	sample, _, err := conf.Load(samplePath)
	require.NoError(t, err)

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd) //nolint:errcheck

	defaults, _, err := conf.Load("")
	require.NoError(t, err)

	require.Equal(t, defaults, sample)
}

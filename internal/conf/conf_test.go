package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/mp4remuxer/internal/logger"
)

func writeTempConf(t *testing.T, content string) string {
	fpath := filepath.Join(t.TempDir(), "remuxer.yml")
	err := os.WriteFile(fpath, []byte(content), 0o644)
	require.NoError(t, err)
	return fpath
}

func TestConfFromFile(t *testing.T) {
	fpath := writeTempConf(t, "logLevel: debug\n"+
		"logDestinations: [stderr, file]\n"+
		"logFile: /tmp/out.log\n"+
		"chunkDuration: 1s\n"+
		"chunkSize: 1MB\n"+
		"moveHeaderToFront: no\n"+
		"finalizeBufferSize: 64KB\n")

	conf, confPath, err := Load(fpath)
	require.NoError(t, err)
	require.Equal(t, fpath, confPath)

	require.Equal(t, &Conf{
		LogLevel: LogLevel(logger.Debug),
		LogDestinations: LogDestinations{
			LogDestination(logger.DestinationStderr),
			LogDestination(logger.DestinationFile),
		},
		LogFile:            "/tmp/out.log",
		ProgressPeriod:     256,
		ChunkDuration:      Duration(1 * time.Second),
		ChunkSize:          1024 * 1024,
		MoveHeaderToFront:  false,
		FinalizeBufferSize: 64 * 1024,
	}, conf)
}

func TestConfDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd) //nolint:errcheck

	conf, confPath, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "", confPath)

	require.Equal(t, LogLevel(logger.Info), conf.LogLevel)
	require.Equal(t, Duration(500*time.Millisecond), conf.ChunkDuration)
	require.Equal(t, StringSize(4*1024*1024), conf.ChunkSize)
	require.Equal(t, true, conf.MoveHeaderToFront)
}

func TestConfFromEnvironment(t *testing.T) {
	t.Setenv("REMUXER_LOGLEVEL", "WARN")
	t.Setenv("REMUXER_CHUNKSIZE", "2MB")
	t.Setenv("REMUXER_MOVEHEADERTOFRONT", "false")
	t.Setenv("REMUXER_LOGDESTINATIONS", "file")

	fpath := writeTempConf(t, "logLevel: debug\n")

	conf, _, err := Load(fpath)
	require.NoError(t, err)

	require.Equal(t, LogLevel(logger.Warn), conf.LogLevel)
	require.Equal(t, StringSize(2*1024*1024), conf.ChunkSize)
	require.Equal(t, false, conf.MoveHeaderToFront)
	require.Equal(t, LogDestinations{LogDestination(logger.DestinationFile)}, conf.LogDestinations)
}

func TestConfErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		conf string
		err  string
	}{
		{
			"invalid log level",
			"logLevel: verbose\n",
			"invalid log level: 'verbose' (allowed: error, warn, info, debug)",
		},
		{
			"duplicate log destination",
			"logDestinations: [stderr, stderr]\n",
			"log destination set twice",
		},
		{
			"empty log destinations",
			"logDestinations: []\n",
			"'logDestinations' must contain at least one destination",
		},
		{
			"zero chunk duration",
			"chunkDuration: 0s\n",
			"'chunkDuration' must be greater than zero",
		},
		{
			"small finalize buffer",
			"finalizeBufferSize: 1KB\n",
			"'finalizeBufferSize' must be at least 4KB",
		},
		{
			"invalid progress period",
			"progressPeriod: 0\n",
			"'progressPeriod' must be greater than zero",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			fpath := writeTempConf(t, ca.conf)
			_, _, err := Load(fpath)
			require.EqualError(t, err, ca.err)
		})
	}
}

func TestStringSize(t *testing.T) {
	for _, ca := range []struct {
		in  string
		out StringSize
	}{
		{`"4MB"`, 4 * 1024 * 1024},
		{`"64KB"`, 64 * 1024},
		{`"1000"`, 1000},
		{`65536`, 65536},
	} {
		t.Run(ca.in, func(t *testing.T) {
			var s StringSize
			err := s.UnmarshalJSON([]byte(ca.in))
			require.NoError(t, err)
			require.Equal(t, ca.out, s)
		})
	}

	var s StringSize
	err := s.UnmarshalJSON([]byte(`"lots"`))
	require.ErrorContains(t, err, "invalid size 'lots'")

	err = s.UnmarshalJSON([]byte(`true`))
	require.EqualError(t, err, "invalid size: true")

	err = s.UnmarshalEnv("", "8192")
	require.NoError(t, err)
	require.Equal(t, StringSize(8192), s)
}

func TestConfClone(t *testing.T) {
	fpath := writeTempConf(t, "chunkSize: 8MB\n")
	conf, _, err := Load(fpath)
	require.NoError(t, err)

	clone := conf.Clone()
	require.Equal(t, conf, clone)
	require.NotSame(t, conf, clone)
}

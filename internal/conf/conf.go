// Package conf contains the struct that holds the configuration of the software.
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bluenviron/mp4remuxer/internal/conf/env"
	"github.com/bluenviron/mp4remuxer/internal/conf/yamlwrapper"
	"github.com/bluenviron/mp4remuxer/internal/logger"
)

// DefaultPath is the configuration path used when none is given.
const DefaultPath = "remuxer.yml"

// Conf is a configuration.
type Conf struct {
	// General
	LogLevel        LogLevel        `json:"logLevel"`
	LogDestinations LogDestinations `json:"logDestinations"`
	LogFile         string          `json:"logFile"`
	ProgressPeriod  int             `json:"progressPeriod"`

	// Muxing
	ChunkDuration      Duration   `json:"chunkDuration"`
	ChunkSize          StringSize `json:"chunkSize"`
	MoveHeaderToFront  bool       `json:"moveHeaderToFront"`
	FinalizeBufferSize StringSize `json:"finalizeBufferSize"`
}

func (conf *Conf) setDefaults() {
	// General
	conf.LogLevel = LogLevel(logger.Info)
	conf.LogDestinations = LogDestinations{LogDestination(logger.DestinationStderr)}
	conf.LogFile = "remuxer.log"
	conf.ProgressPeriod = 256

	// Muxing
	conf.ChunkDuration = Duration(500 * time.Millisecond)
	conf.ChunkSize = 4 * 1024 * 1024
	conf.MoveHeaderToFront = true
	conf.FinalizeBufferSize = 4 * 1024 * 1024
}

// Load loads a Conf.
// When fpath is empty, DefaultPath is used if it exists.
func Load(fpath string) (*Conf, string, error) {
	conf := &Conf{}

	fpath, err := conf.loadFromFile(fpath)
	if err != nil {
		return nil, "", err
	}

	err = env.Load("REMUXER", conf)
	if err != nil {
		return nil, "", err
	}

	err = conf.Validate()
	if err != nil {
		return nil, "", err
	}

	return conf, fpath, nil
}

func (conf *Conf) loadFromFile(fpath string) (string, error) {
	conf.setDefaults()

	if fpath == "" {
		// when the configuration file is not explicitly set,
		// it is optional.
		if _, err := os.Stat(DefaultPath); err != nil {
			return "", nil
		}
		fpath = DefaultPath
	}

	byts, err := os.ReadFile(fpath)
	if err != nil {
		return "", err
	}

	err = yamlwrapper.Unmarshal(byts, conf)
	if err != nil {
		return "", err
	}

	return fpath, nil
}

// Clone clones the configuration.
func (conf Conf) Clone() *Conf {
	enc, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}

	var dest Conf
	err = json.Unmarshal(enc, &dest)
	if err != nil {
		panic(err)
	}

	return &dest
}

// Validate checks the configuration for errors.
func (conf *Conf) Validate() error {
	if len(conf.LogDestinations) == 0 {
		return fmt.Errorf("'logDestinations' must contain at least one destination")
	}
	if conf.ProgressPeriod <= 0 {
		return fmt.Errorf("'progressPeriod' must be greater than zero")
	}
	if conf.ChunkDuration <= 0 {
		return fmt.Errorf("'chunkDuration' must be greater than zero")
	}
	if conf.ChunkSize == 0 {
		return fmt.Errorf("'chunkSize' must be greater than zero")
	}
	if conf.FinalizeBufferSize < 4096 {
		return fmt.Errorf("'finalizeBufferSize' must be at least 4KB")
	}

	return nil
}

// Package core contains the main struct of the software.
package core

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/bluenviron/mp4remuxer/internal/conf"
	"github.com/bluenviron/mp4remuxer/internal/container"
	"github.com/bluenviron/mp4remuxer/internal/logger"
	"github.com/bluenviron/mp4remuxer/internal/remuxer"
	"github.com/bluenviron/mp4remuxer/internal/trackoption"
)

var version = "v0.0.0"

type cli struct {
	Input   []string         `short:"i" required:"" sep:"none" placeholder:"PATH[?TRACK:OPTION,...]" help:"input file, repeatable"`
	Output  string           `short:"o" required:"" placeholder:"PATH" help:"output file"`
	Config  string           `short:"c" placeholder:"PATH" help:"path to a config file. The default is remuxer.yml, if present."`
	Version kong.VersionFlag `help:"print version"`
}

const trackOptionsHelp = `Track options:
  -i input?TRACK_NUMBER:OPTION,OPTION?TRACK_NUMBER:...

  alternate-group=GROUP   alternate group of the track
  language=CODE           ISO 639-2 language code of the track

Example:
  remuxer -i input1.mp4 -i input2.mp4?2:alternate-group=1?3:language=jpn,alternate-group=1 -o output.mp4`

// Core is an instance of the remuxer.
type Core struct {
	conf     *conf.Conf
	confPath string
	logger   *logger.Logger
	sources  []*container.Source
	output   *container.Output
}

// Run runs the software and returns the exit code.
func Run(args []string) int {
	var c cli

	parser, err := kong.New(&c,
		kong.Name("remuxer"),
		kong.Description("mp4remuxer "+version+"\n\nMerges tracks of multiple MP4 files into a single file.\n\n"+
			trackOptionsHelp),
		kong.UsageOnError(),
		kong.Vars{"version": version})
	if err != nil {
		panic(err)
	}

	_, err = parser.Parse(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %s\n", err)
		return 1
	}

	p := &Core{}

	p.conf, p.confPath, err = conf.Load(c.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %s\n", err)
		return 1
	}

	p.logger = &logger.Logger{
		Level:        logger.Level(p.conf.LogLevel),
		Destinations: p.conf.LogDestinations.ToDestinations(),
		File:         p.conf.LogFile,
	}
	err = p.logger.Initialize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %s\n", err)
		return 1
	}
	defer p.logger.Close()
	defer p.closeResources()

	p.Log(logger.Info, "mp4remuxer %s", version)

	if p.confPath != "" {
		p.Log(logger.Debug, "configuration loaded from %s", p.confPath)
	}

	err = p.run(c.Input, c.Output)

	if err != nil {
		p.Log(logger.Error, "%s", err)
		return 1
	}

	return 0
}

// Log is the main logging function.
func (p *Core) Log(level logger.Level, format string, args ...interface{}) {
	p.logger.Log(level, format, args...)
}

func (p *Core) run(inputs []string, outputPath string) error {
	trackOptions := make([]map[int]trackoption.Override, len(inputs))

	for i, input := range inputs {
		path, raw := trackoption.Split(input)

		src, err := container.OpenSource(path)
		if err != nil {
			return remuxer.NewError(remuxer.ErrorKindSource, "unable to open '%s': %w", path, err)
		}
		p.sources = append(p.sources, src)

		trackOptions[i], err = trackoption.Parse(raw, len(src.Tracks()))
		if err != nil {
			return remuxer.NewError(remuxer.ErrorKindConfiguration, "input %d: %w", i+1, err)
		}
	}

	var err error
	p.output, err = container.CreateOutput(outputPath, container.OutputConf{
		ChunkDuration:      time.Duration(p.conf.ChunkDuration),
		ChunkSize:          uint64(p.conf.ChunkSize),
		MoveHeaderToFront:  p.conf.MoveHeaderToFront,
		FinalizeBufferSize: int(p.conf.FinalizeBufferSize),
	})
	if err != nil {
		return remuxer.NewError(remuxer.ErrorKindTransfer, "unable to create '%s': %w", outputPath, err)
	}

	sources := make([]remuxer.Source, len(p.sources))
	for i, src := range p.sources {
		sources[i] = src
	}

	r := &remuxer.Remuxer{
		Sources:        sources,
		TrackOptions:   trackOptions,
		Sink:           p.output,
		ProgressPeriod: p.conf.ProgressPeriod,
		Parent:         p,
	}

	err = r.Run()
	if err != nil {
		return err
	}

	err = p.output.Close()
	if err != nil {
		return remuxer.NewError(remuxer.ErrorKindTransfer, "unable to close '%s': %w", outputPath, err)
	}

	return nil
}

func (p *Core) closeResources() {
	for _, src := range p.sources {
		src.Close() //nolint:errcheck
	}
	p.sources = nil

	p.output.Close() //nolint:errcheck
}

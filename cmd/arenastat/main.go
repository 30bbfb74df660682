// Command arenastat runs a synthetic workload against a growing arena and
// reports how the arena set grew.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/pavanmanishd/slotarena"
)

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	var (
		cfg        workloadConfig
		configFile string
		logLevel   string
	)

	app := kingpin.New(filepath.Base(os.Args[0]), "Runs a synthetic workload against a growing arena and prints per-arena usage.").UsageWriter(os.Stdout)
	app.HelpFlag.Short('h')
	app.Flag("config.file", "YAML file with the arena configuration. Flags given explicitly take precedence.").ExistingFileVar(&configFile)
	setByUser := registerArenaFlags(app, &cfg.arena)
	app.Flag("objects", "Number of records to construct.").Default("10000").IntVar(&cfg.objects)
	app.Flag("rounds", "Number of times the workload is repeated, resetting the arena in between.").Default("1").IntVar(&cfg.rounds)
	app.Flag("log.level", "Only log messages with the given severity or above.").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")

	kingpin.MustParse(app.Parse(os.Args[1:]))
	logger = level.NewFilter(logger, levelOption(logLevel))

	if configFile != "" {
		f, err := os.Open(configFile)
		if err != nil {
			os.Exit(checkError(err))
		}
		fileCfg, err := arena.LoadConfig(f)
		_ = f.Close()
		if err != nil {
			os.Exit(checkError(err))
		}
		mergeFileConfig(&cfg.arena, fileCfg, setByUser)
	}

	os.Exit(checkError(runWorkload(os.Stdout, logger, cfg)))
}

func levelOption(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

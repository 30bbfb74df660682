package main

import (
	"flag"

	"github.com/alecthomas/kingpin/v2"

	"github.com/pavanmanishd/slotarena"
)

// registerArenaFlags exposes the flags of arena.Config on app. It returns,
// per flag name, whether the user set the flag explicitly.
func registerArenaFlags(app *kingpin.Application, cfg *arena.Config) map[string]*bool {
	fs := flag.NewFlagSet("arena", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	setByUser := make(map[string]*bool)
	fs.VisitAll(func(f *flag.Flag) {
		set := new(bool)
		setByUser[f.Name] = set
		app.Flag(f.Name, f.Usage).IsSetByUser(set).SetValue(f.Value)
	})
	return setByUser
}

// mergeFileConfig copies the fields of file into cfg whose flags the user did
// not set explicitly.
func mergeFileConfig(cfg *arena.Config, file arena.Config, setByUser map[string]*bool) {
	explicit := func(name string) bool {
		set, ok := setByUser[name]
		return ok && *set
	}
	if !explicit("arena.min-size") {
		cfg.MinSize = file.MinSize
	}
	if !explicit("arena.max-bytes") {
		cfg.MaxBytes = file.MaxBytes
	}
}

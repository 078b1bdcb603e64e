// Package config loads an engine.Config plus the store.Format to persist
// it with from a small INI file: read the file, decode known keys into a
// typed struct, wrap any failure with the failing key's name. It is a
// genuine ini file, parsed with gopkg.in/ini.v1 rather than a
// hand-rolled scanner, since that library is already part of this
// project's dependency graph.
//
// This is a configuration-loading concern, not CLI argument parsing:
// choosing which file to load, and what to do once flags have been
// parsed, remains the caller's job.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	ini "gopkg.in/ini.v1"

	"github.com/nicolagi/gemla/engine"
	"github.com/nicolagi/gemla/store"
)

// Section is the ini section config.LoadFile reads. Callers embedding
// gemla settings alongside their own in one file can rely on this name
// not colliding with anything gemla-unrelated.
const Section = "gemla"

// LoadFile reads an engine.Config and a store.Format from the named ini
// file's [gemla] section.
//
// Recognized keys:
//
//	generations_per_height (uint, required)
//	overwrite               (bool, default false)
//	max_concurrent_tasks    (int, default 0, meaning unbounded)
//	format                  (one of "json", "gob"; default "json")
func LoadFile(path string) (engine.Config, store.Format, error) {
	var cfg engine.Config

	f, err := ini.Load(path)
	if err != nil {
		return cfg, store.FormatJSON, errors.Wrapf(err, "config: load %q", path)
	}

	section := f.Section(Section)

	generations, err := section.Key("generations_per_height").Uint64()
	if err != nil {
		return cfg, store.FormatJSON, errors.Wrapf(err, "config: %q: generations_per_height", path)
	}
	cfg.GenerationsPerHeight = generations

	cfg.Overwrite = section.Key("overwrite").MustBool(false)
	cfg.MaxConcurrentTasks = section.Key("max_concurrent_tasks").MustInt(0)

	format, err := parseFormat(section.Key("format").MustString("json"))
	if err != nil {
		return cfg, store.FormatJSON, errors.Wrapf(err, "config: %q: format", path)
	}

	return cfg, format, nil
}

func parseFormat(s string) (store.Format, error) {
	switch s {
	case "json":
		return store.FormatJSON, nil
	case "gob":
		return store.FormatGob, nil
	default:
		return store.FormatJSON, fmt.Errorf("unknown format %q, want json or gob", s)
	}
}

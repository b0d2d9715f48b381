package fragstore

import "github.com/TheBitDrifter/fragstore/internal/limits"

// Logger is the structured-logging shape World expects (the same call
// signature the teacher's event hooks use through bark), so callers can
// plug in their own bark.Logger without this package importing a concrete
// logging backend beyond bark.AddTrace for panics.
type Logger interface {
	Infof(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any) {}

// TableEvents mirrors the teacher's table.TableEvents plumbing (config.go's
// global Config.tableEvents field): a callback slot for block allocation.
// World stores it with the rest of its Config but never calls
// OnBlockAllocated.
type TableEvents struct {
	OnBlockAllocated func(blockIndex int)
}

// Config holds the World's tunable constants and hooks. Unlike the
// teacher's global `var Config config`, this is an explicit field on each
// World (spec.md §9 Design Note: "no ambient globals").
//
// World keeps the Config it was built with but reads none of its fields:
// storage is always sized by the internal/limits constants, and Logger and
// TableEvents are never called.
type Config struct {
	BlockSize             int
	MaxComponents         int
	CommandBufferCapacity int
	Logger                Logger
	TableEvents           TableEvents
}

// DefaultConfig returns the tunable constants at their spec-documented
// defaults (§6 "Tunable constants").
func DefaultConfig() Config {
	return Config{
		BlockSize:             limits.BlockSize,
		MaxComponents:         limits.MaxComponents,
		CommandBufferCapacity: limits.CommandBufferCapacity,
		Logger:                noopLogger{},
	}
}

func (c Config) logger() Logger {
	if c.Logger == nil {
		return noopLogger{}
	}
	return c.Logger
}

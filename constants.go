package fragstore

import "github.com/TheBitDrifter/fragstore/internal/limits"

// Tunable constants for the store (spec.md §6). Re-exported from internal/limits
// so every package shares one definition.
const (
	BlockSize             = limits.BlockSize
	BlockShift            = limits.BlockShift
	MaxComponents         = limits.MaxComponents
	WordBits              = limits.WordBits
	MaxComponentWords     = limits.MaxComponentWords
	CommandBufferCapacity = limits.CommandBufferCapacity
)

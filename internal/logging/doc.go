// Package logging builds the process slog.Logger from config, optionally
// tee'ing output into a size-rotated file.
package logging

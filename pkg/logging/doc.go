// Package logging provides structured logging configuration for fixserve.
//
// It wraps log/slog so every component logs through the same handler setup.
// Components accept a *slog.Logger in their constructor or via an option;
// when none is provided they fall back to logging.Nop().
package logging

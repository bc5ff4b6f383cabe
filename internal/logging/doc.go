// Package logging wires log/slog with the console and JSON handlers used
// across abrpack, plus small helpers for attribute construction and progress
// log sampling.
package logging

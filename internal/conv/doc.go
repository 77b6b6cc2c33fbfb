// Package conv provides checked integer conversions.
//
// Syscall arguments arrive as raw 64-bit register values and lengths are
// signed at the user boundary; these helpers keep the narrowing explicit.
package conv

// Package logx is a thin structured-logging layer over zerolog.
//
// It exists so the rest of the code can log through a stable API while the
// Service swaps sinks and levels at runtime (config hot-reload), and so
// error-level records can be mirrored to an admin chat recipient without the
// call sites knowing about it.
package logx

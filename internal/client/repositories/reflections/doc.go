// Package reflections persists reflection notes. Unlike diary and mood rows,
// reflections are append-only and many may share a date id.
package reflections

// Package diagnostics reports host resources relevant to running PlantSage:
// memory for image decoding, disk for the history database, and CPU load.
package diagnostics

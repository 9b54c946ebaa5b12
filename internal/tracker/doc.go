// Package tracker holds the artifact data model and the change detector.
//
// Nothing in this package performs I/O: snapshots come in, change events go
// out. Persistence lives in internal/storage and fetching in internal/catalog.
package tracker

// Package repository defines the data access interfaces for opsmap.
//
// Topology is never stored: it is fetched from the network provider on
// every load. What is kept are optimization runs, so the latest results can
// be downloaded after a restart, and small metadata values such as the
// saved optimization settings and the active mode.
//
// The implementation is in the sqlite subpackage and is tested against
// in-memory databases.
package repository

// Package progress provides live counters for pipeline stages.
//
// Progress instances form a tree. A stage receives its own node, usually
// created with Shared on a parent owned by the caller, and is the only
// writer of that node. A parent with children never stores counts of its
// own; every read sums the current values of its descendants, so observers
// such as a status line or a metrics exporter see the whole pipeline by
// reading the root.
//
// Reporter renders a Progress as a single updating terminal line.
package progress

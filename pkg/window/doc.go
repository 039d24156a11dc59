// Package window implements windowing constructs. In the world of data processing on an unbounded stream, Windowing
// is a concept of grouping data using temporal boundaries. We use event-time to discover temporal boundaries on an
// unbounded, infinite stream and Watermark to ensure the datasets within the boundaries are complete. A reduce function
// can be applied on this group of data.
//
// Windowing is implemented as a two stage process,
//   - Assign windows - an Assigner maps the event time of an element to one or more windows
//   - Merge windows - a Merger collapses the windows of a key that must be treated as one
//
// The two stage approach is required because assignment happens per element, but merging depends on every window the
// key currently has. This is important esp. when we handle session windows where a new event can bridge two windows
// that were previously separate.
//
// Windows may be either aligned (e.g., Fixed, Sliding), i.e. applied across all the data for the window of time in
// question, or unaligned, (e.g., Session) i.e. applied across only specific subsets of the data (e.g. per key) for the
// given window of time. Only unaligned windows merge.
package window

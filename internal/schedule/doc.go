// Package schedule computes the posting times for one cycle.
//
// A cycle covers a single calendar day (the posting day). Two strategies are
// supported and selected statically per run:
//   - Fixed: configured anchor clock-times, each moved by a random jitter
//     that never crosses midnight.
//   - Uniform: Count slots spread evenly across a daily window, at least one
//     minute apart.
//
// Generate is a pure function of now, the config and the random draws; it
// never sleeps and never touches storage.
package schedule

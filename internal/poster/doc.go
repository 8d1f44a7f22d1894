// Package poster runs the posting loop: generate the day's schedule, wait
// for each instant, post the head item and rotate the queue.
package poster

// Package randx holds the random source abstraction shared by the schedule
// generator and the queue rotator.
//
// Components never reach for the global math/rand source. They receive a
// Source so tests can script the exact draws.
package randx

// Package jobs provides concrete scheduler tasks: a fork-join parallel
// quicksort, a tiled Perlin noise renderer and a task wrapping a plain
// function. Each job also has a single-threaded entry point so results can
// be compared byte for byte.
package jobs

// Package grid splits the global temperature grid into column strips.
//
// A Layout describes how ROWS x COLS cells are shared among workers: every
// worker owns ROWS x (COLS/workers) cells, left to right in rank order. The
// global grid is only materialised at decomposition time; afterwards each
// worker mutates its own strip.
//
// Boundary cells (global top and bottom rows, global leftmost and rightmost
// columns) start at the boundary value and every other cell at zero.
package grid

// Package viz renders oscillation results in the terminal.
//
// [Model] is a Bubble Tea program that propagates a system segment by
// segment and plots the flavor content of one energy node against distance,
// with the current spectrum drawn on a braille [Canvas]. [PlotColumns]
// draws stored probability tables with asciigraph.
//
// # Key Bindings
//
//	Space - Pause/Resume propagation
//	R     - Restart from the source
//	Tab   - Watch the next energy node
//	Up/K  - Scale the couplings up
//	Down/J- Scale the couplings down
//	[ ]   - Replay recorded distances
//	T     - Cycle color themes
//	?     - Show help overlay
package viz

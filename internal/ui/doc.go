// Package ui provides the Bubble Tea terminal interface for Lantern.
//
// The interface renders a single filtered view of the record store: a
// scrolling log pane, a status header with store and queue counters,
// and a query input line. All pipeline state arrives as Bubble Tea
// messages; the model never touches view internals directly. A
// subscriber registered on the consumer loop forwards batched view
// notifications through Program.Send, so the UI sees at most one
// append, one evict, and one reset message per drained batch.
//
// Keyboard model:
//
//   - f cycles the severity threshold, / edits the text query
//   - r toggles regex matching, c toggles case sensitivity
//   - space pauses and resumes follow mode
//   - s exports a snapshot, C clears the store
//   - T cycles themes, h or ? shows help, q quits
package ui

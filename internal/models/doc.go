// Package models defines the core domain models for SplitSmart.
//
// # Receipt and assignment models
//
// The following models describe one bill being split:
//   - Receipt: structured line items and totals extracted from a receipt photo
//   - AssignmentMap: which participants share which item
//   - ItemManualSplitsMap: explicit per-person dollar amounts for an item
//   - ItemOverridesMap: fixed per-item tax/tip amounts used by the MANUAL method
//
// Participants are identified by free-text names. Names are case-sensitive and
// are never normalized by the calculator.
//
// # Output models
//
// PersonSummary is the calculated breakdown for one person, and SplitSummary
// wraps the full list together with the distributed totals.
//
// # Persistence
//
// SavedSplit is a history entry: a snapshot of the inputs above plus the
// metadata needed to list it. All models carry JSON tags matching the shape
// the browser client stores and sends, so they can be persisted as opaque
// JSON-compatible values.
//
// # Design Principles
//
//  1. **Value snapshots**: the calculator receives copies and never retains them
//  2. **Maps keyed by item ID**: item IDs are unique within a receipt
//  3. **No pointers between models**: relationships use ID strings
package models

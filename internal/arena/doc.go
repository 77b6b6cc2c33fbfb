// Package arena holds the mapping bookkeeping of one address space.
//
// An Arena is a fixed array of MaxRegions region slots. Each Region embeds a
// fixed pool of MaxPages page blocks, so creating or destroying a mapping
// never allocates. Blocks carry an explicit state (Free, Reserved,
// Resident), and a per-region sequence keeps live blocks in ascending
// address order.
//
// Slots are addressed through a Ref that carries the slot's generation;
// a Ref to a released or reused slot fails with ErrStaleRef instead of
// silently naming the new occupant.
package arena

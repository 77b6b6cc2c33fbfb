// Package pagetable implements Sv39 page tables stored in simulated
// physical frames.
//
// A page table is a three-level radix tree of 512-entry tables, each table
// one physical frame, entries little-endian uint64. Leaf entries carry the
// user permission bits from package arch. The package provides the
// primitives the memory manager builds on: install (MapPages, MapFresh),
// remove (Unmap), translate (WalkAddr, Lookup), cross-address-space copy
// (CopyIn, CopyOut), teardown (Destroy) and a vmprint-style Dump.
//
// A PageTable is owned by one process and is not safe for concurrent
// mutation.
package pagetable

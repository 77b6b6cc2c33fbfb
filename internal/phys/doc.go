// Package phys simulates physical RAM and its page-frame allocator.
//
// RAM is a single off-heap host mapping that starts at arch.KernBase in the
// simulated physical address space. Free frames are tracked in a roaring
// bitmap of frame numbers; allocation always hands out the lowest free frame,
// which keeps runs reproducible across tests.
//
// Freed frames are filled with junk so that dangling references read garbage
// instead of stale data. A double free or a free of a foreign address is a
// kernel bug and panics.
package phys

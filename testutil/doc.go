// Package testutil provides testing utilities for vmmap.
//
// This package is intended for use in tests only. It provides a seeded,
// thread-safe RNG for deterministic file and page contents, and helpers
// for creating backing files.
//
//	rng := testutil.NewRNG(4711)
//	data := rng.Bytes(2 * 4096)
//	testutil.WriteFile(t, dir, "data.bin", data)
package testutil

// Package ledgercache implements a backend-agnostic cache that keeps a listing
// of every key it wrote. Application code reads and writes values without
// knowing whether a process-local map, an in-process shared cache or a
// networked pool is behind it.
//
// Components:
//   - backend.Backend: byte store with TTL (memory, BigCache, Ristretto,
//     Memcached, Redis).
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - ledger.Ledger: key -> {expiration, created, updated}, with a content
//     fingerprint that tells whether the listing must be written again.
//
// Keys:
//
//	cacheListing  - the persisted listing (ReservedKey); callers may not use it
//	<key>         - application values, stored as given
//
// Write path:
//
//	a.Set(ctx, k, v, ttl)   // backend write; on success ledger.RecordWrite,
//	                        // then the listing is stored iff its fingerprint moved
//	a.Get(ctx, k)           // absent without a backend read unless k is tracked
//
// The listing is adapter-local. Two processes over one backend keep separate
// views and the last writer's listing wins.
package ledgercache

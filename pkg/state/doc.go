// Package state defines the persistence contract for session documents.
//
// A Store holds raw JSON documents in named slots. It knows nothing about
// their shape: decoding, legacy detection and repair happen above it, so a
// backend only has to move bytes and keep Meta.
//
// Keys:
//
//	Ref.Identifier() gives the canonical key, `slot` or `owner/slot` when the
//	document belongs to an authenticated user.
//
// Concurrency:
//
//	Save accepts an expected ETag. When both the caller and the stored
//	document carry one and they differ, Save fails with ErrETagMismatch.
//
// Backends in this module: MemoryStore, FileStore, sqlstore (gorm) and
// redisstore (go-redis).
package state

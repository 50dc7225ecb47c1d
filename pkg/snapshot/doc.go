// Package snapshot mirrors session documents into off-host storage.
//
// A session always persists to its own document file. When a snapshot store
// is configured, every save also writes the compressed document here, and a
// session whose file has gone missing is restored from the latest snapshot.
//
// # Backends
//
// The Store interface is implemented by:
//
//	snapshot.NewMemoryStore()                      // tests and single-process setups
//	snapshot.NewRedisStore(redisClient)            // shared, latest only
//	snapshot.NewPostgresStore(ctx, pool)           // shared, latest only
//	snapshot.NewS3Store(s3Client, "bucket")        // latest plus ULID-keyed history
//	snapshot.OpenBoltStore("/var/lib/joint.db")    // embedded
//
// Open builds a store from a Config, retrying the initial connection with
// exponential backoff.
//
// # Payload
//
// Stores hold opaque bytes. Marshal and Unmarshal define the JSON payload:
//
//	{"version": 1, "path": "/art.bin", "saved_at": "...", "doc": {...}}
//
// where doc is a textmode.CompressedDocument.
package snapshot

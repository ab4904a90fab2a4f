// Package natsclient wraps a NATS connection and its JetStream key-value
// buckets for the remote configuration layer.
//
// The remote configuration source and the per-device override store both
// live in KV buckets. Client owns the connection, exposes bucket get-or-create
// helpers, and protects callers with a circuit breaker: after a threshold of
// consecutive failures (default 5) the circuit opens and operations fail fast
// with ErrCircuitOpen until the backoff elapses. The backoff doubles up to
// the configured maximum and resets on a successful connect or reconnect.
//
// # Connection Lifecycle
//
// Disconnected → Connecting → Connected → Reconnecting → Connected. Health
// transitions are reported through WithHealthChangeCallback.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithName("tagctl"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// # KVStore
//
// KVStore adds compare-and-swap helpers over a bucket. UpdateWithRetry reads
// the current revision, applies the update function, and writes with the
// revision check, retrying with jittered backoff on conflict:
//
//	bucket, _ := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "overrides"})
//	kv := client.NewKVStore(bucket)
//	err := kv.UpdateJSON(ctx, deviceID, func(m map[string]any) error {
//	    m["app_apple_pay_is_enabled"] = true
//	    return nil
//	})
//
// WatchRevisions follows one key and reports the revision of each later
// change; the remote configuration source refreshes on it.
//
// Missing keys report ErrKVKeyNotFound, which also matches
// errors.ErrKeyNotFound. Conflicts report ErrKVKeyExists or
// ErrKVRevisionMismatch; use IsKVNotFoundError and IsKVConflictError to
// classify raw JetStream errors.
//
// # Testing
//
// TestClient starts a NATS server in a container through testcontainers.
// Tests that need it are tagged integration:
//
//	tc := natsclient.NewTestClient(t, natsclient.WithKVBuckets("overrides"))
//	bucket, _ := tc.Client.GetKeyValueBucket(ctx, "overrides")
package natsclient

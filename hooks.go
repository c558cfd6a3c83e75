package ledgercache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Mutation and persist events fire while the adapter holds its lock; read
// errors and reserved-key rejections fire without it.
type Hooks interface {
	// Backend returned ok=false for a write or delete.
	// op ∈ {"set", "delete", "persist"}
	BackendRejected(op, key string)

	// Backend returned an error. err is an *OpError.
	BackendError(op, key string, err error)

	// The persisted listing could not be read back at construction.
	// reason ∈ {"frame", "decode", "count_mismatch"}
	ListingCorrupt(reason string)

	// Writing the listing to the reserved key failed or was rejected.
	ListingPersistFailed(err error)

	// A caller tried to use the reserved listing key.
	ReservedKeyRejected(op string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BackendRejected(string, string)     {}
func (NopHooks) BackendError(string, string, error) {}
func (NopHooks) ListingCorrupt(string)              {}
func (NopHooks) ListingPersistFailed(error)         {}
func (NopHooks) ReservedKeyRejected(string)         {}

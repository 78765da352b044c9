// Package cache decorates an ai.Provider with a Redis-backed embedding cache.
//
// Vectors are content addressed: the key combines the model, the requested
// dimensions and task type, and a BLAKE2b fingerprint of the text. Cache
// failures never fail an embedding call; they are logged and the request
// falls through to the wrapped provider.
package cache

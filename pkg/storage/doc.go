// Package storage provides the connector's key/value persistence gateway.
//
// The Store interface treats all values as opaque blobs and exposes exactly
// four operations: Get, Put, Delete and DeletePrefix. Keys for user records
// and foreign-identity aliases are shaped by UserKey and ForeignUserKey; no
// other package constructs storage keys.
//
// Two implementations are provided: RedisStore for production and
// MemoryStore for tests and local development. Both scope every key under a
// namespace prefix supplied by the host, so one Redis database can hold
// several connectors without collisions.
package storage

// Package store declares the persistence ports for templates, clients and
// documents, the DBTX abstraction shared by SQL implementations, and the
// store-level sentinel errors callers match with errors.Is.
//
// Implementations live in internal/platform/postgres and
// internal/platform/memory.
package store

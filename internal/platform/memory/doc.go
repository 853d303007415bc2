// Package memory provides in-process implementations of the store
// interfaces. It backs tests and the server's --store=memory mode. Entities
// are copied on the way in and out, so callers never share state with the
// store.
package memory

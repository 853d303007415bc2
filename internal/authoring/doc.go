// Package authoring defines the boundary to the external document-authoring
// service that stores template sources and produces generated documents.
//
// The Client interface is implemented by platform/gdocs over the Google Docs
// and Drive APIs. Guarded wraps any Client with a circuit breaker, and
// Classify maps its errors to retry classes, so the generation pipeline never
// depends on a concrete provider.
package authoring

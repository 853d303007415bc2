// Package service contains the application use cases that sit between the
// API and the stores: template authoring (create, re-sync placeholders from
// the source document, lifecycle transitions) and generated document
// management.
//
// Services receive their dependencies through constructor injection and never
// depend on a specific store implementation. Store and domain errors are
// returned so that callers can match them with errors.Is; anything unexpected
// is wrapped in a ServiceError.
package service

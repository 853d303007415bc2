// Package api exposes the generation pipeline over HTTP: task submission,
// status and cancellation, a server-sent event feed of task progress, and
// the template and document lifecycle endpoints. Domain errors are mapped
// to status codes here and never reach clients unredacted.
package api

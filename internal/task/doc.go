// Package task runs document generation asynchronously. The Orchestrator
// accepts generation requests, persists them as GenerationTasks and executes
// them on a bounded worker pool, recovering unfinished tasks after a restart
// so that HTTP request handling never waits on the authoring service.
package task

// Package domain contains the core business entities of the document
// generation pipeline: templates and their placeholders, clients, generation
// tasks and generated documents, together with the status machines that
// govern their lifecycles. It has no dependency on storage or transport.
package domain

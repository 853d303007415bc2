// Package gdocs implements authoring.Client over the Google Drive v3 and
// Google Docs v1 APIs. Template sources are Google Docs; a generation copies
// the source into the output folder with Drive and replaces the markers with
// Docs batchUpdate ReplaceAllText requests.
package gdocs

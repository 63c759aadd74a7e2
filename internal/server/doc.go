// Package server is the HTTP face of the persistence service.
//
// Editing sessions post change-sets to /annotations/:id as
//
//	{"_method": "PATCH", "data": "<change-set JSON>"}
//
// and the server merges them into the SQLite store field by field. The
// delivery stamp travels in the X-Annotie-Session, X-Annotie-Seq and
// X-Annotie-Changeset headers; a change-set id that was already applied is
// acknowledged without writing, so senders can retry freely. A change-set
// posted without a seq is stamped by the server and always applied.
package server

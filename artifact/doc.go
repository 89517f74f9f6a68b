// Package artifact stores extracted upload text so later requests can refer
// to a document by id instead of sending its content again.
//
// Documents are grouped by scope (the session id of the upload, or "" for
// anonymous uploads). Every scope keeps at most a bounded number of
// documents; the oldest are evicted first. Storage is in-process only and
// does not survive restarts.
package artifact

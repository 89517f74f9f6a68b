// Package server exposes a Relay over HTTP using echo.
//
// Streaming endpoints write one canonical event per line (NDJSON) or per
// server-sent event frame and flush after each event. /chat/ws carries the
// same events as websocket text frames. Uploaded files are extracted with
// the document package and kept in an artifact.Store so that later file
// analysis requests may refer to them by id.
package server

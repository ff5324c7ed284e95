package acmi

import "errors"

// ErrEndOfFile signals the peer closed the connection or sent a zero-length
// frame (the ingest consumer also returns it for a file server's "-exit"
// line); this is normal shutdown, not a failure.
var ErrEndOfFile = errors.New("acmi: end of file")

// ErrDuplicateSession is surfaced when a recording with an identical
// start_time has already been processed and overwrite was not requested
// with the same start time has already been processed.
var ErrDuplicateSession = errors.New("acmi: session already processed (use overwrite to reprocess)")

// ErrMalformedFrame covers any frame this decoder cannot interpret: an
// unexpected pipe count in a T tuple, a non-hex id, or a key=value chunk
// missing its '='.
var ErrMalformedFrame = errors.New("acmi: malformed frame")

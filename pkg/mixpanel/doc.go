/*
Package mixpanel implements a thin client for the Mixpanel data export API. Every request is
signed; the client keeps no state between calls beyond its credentials.

A request is built in four steps.

Step 1: copy the caller's parameters and inject `api_key`, `expire` (Unix seconds, now + 600)
and `format` (default `json`). A stale `sig` is dropped.

Step 2: render every value as text. Strings are used as-is, numbers and booleans use their
shortest decimal form, `time.Time` becomes a `YYYY-MM-DD` date, and sequences of scalars
become a JSON array such as `[1, 2, 3]`. The same text is signed and transmitted.

Step 3: sort the keys by byte order and hash `key=value` pairs abutted with no separator,
followed by the API secret:

	sig = hex(md5("api_key=k" + "event=Login" + "expire=1700000600" + "format=json" + secret))

Step 4: send `GET <endpoint>/<version>/<path...>/?<query>&sig=<sig>` and decode the JSON body.
*/
package mixpanel

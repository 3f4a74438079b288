// Package fingerprint persists a non-reversible fingerprint of the security
// token plus its expiry across restarts.
//
// The plaintext token is never written to any persistent medium. The stored
// record answers exactly one question, "did the previous session plausibly
// leave a live token behind", and can never be turned back into a usable
// token. Persistence is an optimization: every backend failure degrades to
// "always fetch fresh", never to an error on the token path.
package fingerprint

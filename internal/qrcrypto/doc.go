// Package qrcrypto seals QR payloads and computes their integrity digests.
//
// The digest is a plain SHA-256 content address over a canonical JSON form of
// the payload. It detects corruption and naive edits but is not an
// authenticator: anyone holding the shared secret can produce a matching
// digest. Tamper detection against outsiders comes from the AEAD seal.
package qrcrypto

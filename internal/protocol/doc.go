// Package protocol defines the records that flow through the committed log:
// the closed Intent enumeration, the typed record values, and the canonical
// JSON encoding used for variable documents and content hashes.
//
// This package has no internal dependencies. Everything else builds on it.
//
// Determinism rules:
//   - numbers are int64; floats are rejected at decode time
//   - documents serialize through MarshalCanonical (RFC 8785, NFC strings)
//   - hashes are domain separated: SHA256(domain + 0x00 + data)
package protocol

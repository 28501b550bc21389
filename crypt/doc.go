// Package crypt implements the PDF standard security handler.
//
// A Handler is created from a document's /Encrypt dictionary and its first
// /ID string. After Authenticate succeeds it decrypts strings and streams
// object by object. The same type drives the writer: New derives a fresh
// file key from a Params value and exposes the matching /Encrypt
// dictionary through Dict.
//
// Revisions 2 through 4 use the MD5/RC4 key derivation with RC4 or
// AES-128 payload encryption. Revisions 5 and 6 use AES-256 with the
// SHA-2 based password checks.
package crypt

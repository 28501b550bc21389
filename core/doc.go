// Package core provides low-level PDF parsing primitives and object types.
//
// # Object Types
//
// PDF defines eight basic object types, all implemented as types satisfying the
// Object interface:
//
//   - [Null], [Bool], [Int], [Real]
//   - [String] - raw bytes of a literal or hexadecimal string; [String.Text]
//     decodes text strings
//   - [Name] - interned through [Intern] for the common names
//   - [Array], [Dict]
//
// Additionally, [Stream] represents a PDF stream (dictionary + payload),
// and [IndirectRef] represents a reference to an indirect object. A
// reference records the [DocID] of the document it was read from, so it
// cannot silently be resolved against another document.
//
// # Parsing
//
// The [Lexer] tokenizes PDF syntax from a forward-only reader or a
// random-access source that can be repositioned with Seek. Inside arrays
// and dictionaries it collapses "N G R" into a single reference token.
// The [Parser] builds objects from tokens, tolerating malformed numbers,
// wrong stream lengths and missing endobj keywords.
//
// # Cross-Reference Tables
//
// [XRefParser] loads classic tables, xref streams and hybrid files and
// follows the /Prev chain of incremental updates, newest entries winning.
// When that fails, [Rebuild] recovers a table by scanning the whole file.
//
// # Object Streams and Filters
//
// [ObjectStream] reads objects packed into /Type /ObjStm streams.
// [Stream.Decode] runs a stream's filter chain.
//
// # Serialization
//
// [AppendObject] and [AppendIndirectObject] write objects back in PDF
// syntax with deterministic key order.
package core

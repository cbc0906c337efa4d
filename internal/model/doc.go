// Package model holds the descriptor types that every compiler in docmap reads.
//
// A Model is an ordered set of Columns. Each Column names a stored field
// (Alias) under a logical name (Name), a list of Formats, optional bounds and
// value constraints, and optionally a reference to another model or to a
// primitive marker. Columns that reference a composite model are relations:
//
//   - foreign relations live in another collection and are joined at query time
//   - nested relations are embedded subdocuments of the owning document
//
// Column order is declaration order and is significant: projections,
// predicates and validator "required" lists are emitted in that order so
// compiled output is deterministic.
//
// Descriptors are immutable once compilation starts. Relations may point back
// to their own model (directly or through other models); Bind links such
// targets after the models have been defined.
package model

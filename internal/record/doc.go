// Package record defines the document model shared by every store adapter.
//
// A Record is a flat map of field name to Value. Value is a sealed interface:
// only Null, String, Number, and Bool implement it. Nested documents are not
// part of the model; every entity field in the tracker is a scalar.
//
// The Store interface is the adapter contract the engines consume. Adapters
// must return records in insertion order and report a missing id with
// ErrNotFound.
package record

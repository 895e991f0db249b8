// Package share implements the share batch lifecycle: minting share
// identifiers and codes, writing an uploaded batch to the object store and
// metadata index, and resolving a batch back into records, presigned
// access descriptors or a streamed zip archive.
//
// The package talks to storage only through the ObjectStore and Index
// contracts so that it can be exercised against in-memory fakes.
package share

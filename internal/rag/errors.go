package rag

import "errors"

// ErrEmptyIndex is returned by retrieval against a store that holds no
// vectors yet. It is surfaced to the caller and never retried; the fix is
// to ingest documents first.
var ErrEmptyIndex = errors.New("rag: index is empty, no documents ingested")

package entities

import "errors"

var (
	// ErrMalformedMessage is returned for inbound frames that fail strict decoding.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrDimensionMismatch means the query embedding and a corpus embedding differ in length,
	// which points at different embedding models for the corpus and the queries.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbedding is returned when the remote embedding call fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration is returned when the remote generation call fails.
	ErrGeneration = errors.New("generation failed")

	// ErrNotInitialized is returned when the corpus is used before it was loaded.
	ErrNotInitialized = errors.New("similarity index not initialized")

	// ErrCorpusLoad is returned when a configured corpus cannot be read or parsed.
	ErrCorpusLoad = errors.New("corpus load failed")
)

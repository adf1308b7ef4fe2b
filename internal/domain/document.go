package domain

// Document is a knowledge-base entry. Metadata is opaque and passed through untouched.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64 // similarity in [0,1], set on retrieval only
}

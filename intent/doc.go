// Package intent decides, per incoming message, whether a new session is
// served by a single endpoint or by the producer/reviewer pipeline.
//
// The shipped PhraseClassifier is a best-effort substring heuristic whose
// phrase lists are configuration (YAML), not code. Anything satisfying
// Classifier, for example a model-based classifier, can replace it without
// touching the rest of the relay.
package intent

// Package corpus turns EMBER-format JSON feature records into attribute
// records, so a model can be trained on the public EMBER corpora without the
// original executables.
//
// Each JSONL line carries precomputed features of one sample. Extract maps a
// line onto attributes.Record; Reader and Load stream whole files and keep
// the labelled samples for training.
package corpus

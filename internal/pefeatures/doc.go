// Package pefeatures extracts a fixed attribute record from raw Windows PE
// images for malware scoring.
//
// Headers and the section table are read with Go's debug/pe package. The
// import and export directories are walked directly over the sample bytes,
// resolving RVAs through the section table, because debug/pe does not expose
// library lists, ordinal imports or exports.
//
// # Usage
//
//	rec, err := pefeatures.Extract(sample)
//	if pefeatures.IsParseFailure(err) {
//	    // the sample defeated static parsing
//	}
//
// # Failure semantics
//
// Input that is not a PE image, or whose headers or tables are truncated or
// point outside the file, yields a *ParseError. Callers must not treat it as
// an empty record: the scorer turns it into a malicious verdict.
//
// Extract is a pure function of its input and is safe for concurrent use.
package pefeatures

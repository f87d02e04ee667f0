// Package bamprovider provides sequential access to coordinate-sorted BAM and
// SAM files, local or remote.
//
// Provider wraps one input file: it exposes the file's header and creates
// Iterators that yield its records in file order. ExpandInputs turns the
// command-line input arguments into a list of paths.
package bamprovider

// Package collapse merges coordinate-sorted alignment files and folds
// duplicate alignments at each position into one representative record.
//
// The representative carries three integer tags:
//
//   YC  the number of reads it stands for
//   YX  the number of samples (inputs) that contributed
//   YD  the bundle distance: how far back from its start the contiguous
//       coverage it extends reaches, maximized over contributing samples
//
// An input whose header records a previous tiebrush run is treated as
// pre-merged: its YC and YX tags are summed instead of counting each record
// as one read of one sample, so collapsed outputs can be collapsed again.
//
// Run drives the whole pipeline.  Merger, ReconcileHeaders and BundleTracker
// are exported for callers that assemble their own.
package collapse

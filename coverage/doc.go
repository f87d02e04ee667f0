// Package coverage computes per-base tracks from coordinate-sorted alignments:
// read depth, splice junction support, and a per-base sample count heatmap.
// Records may be raw or collapsed; a collapsed record counts YC times.
//
// Depth and heatmap tracks are written as bedGraph, junctions as BED-6 with
// names JUNC00000001, JUNC00000002, ... numbered across the whole run.
package coverage

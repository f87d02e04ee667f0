/*Package interval implements interval-union operations on genomic
  coordinates.  Overlapping and abutting intervals are merged, not tracked
  separately.

  BEDUnion is a static region set loaded from a BED file.  Union is a mutable
  per-contig union that supports insertion and discarding from the front, for
  sweeps over coordinate-sorted data.

  Every position must fit in a PosType, which is int32 since that's what BAM
  files are limited to.
*/
package interval

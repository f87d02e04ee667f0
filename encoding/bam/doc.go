// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bam provides helpers that augment the SAM and BAM packages in
// github.com/grailbio/hts: flag predicates, typed aux tag access, and the
// exon and splice-strand views of an alignment used when collapsing reads.
package bam

// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package circular provides sliding-window data structures which are
// frequently useful when iterating through coordinate-sorted BAM or SAM
// files: per-position counters (Window) and per-position column bitmaps
// (Bitmap), both backed by power-of-two rings that grow with the live span.
package circular

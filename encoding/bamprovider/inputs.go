package bamprovider

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ExpandInputs returns the alignment files named by args.  A single argument
// that is not recognizably a BAM or SAM file is read as a list file: one path
// per line, with blank lines and lines starting with '#' skipped.  Gzipped list
// files are accepted.
func ExpandInputs(ctx context.Context, args []string) (paths []string, err error) {
	if len(args) != 1 || GuessFileType(args[0]) != Unknown {
		return args, nil
	}
	f, err := file.Open(ctx, args[0])
	if err != nil {
		return nil, errors.Wrapf(err, "open input list %s", args[0])
	}
	defer file.CloseAndReport(ctx, f, &err)
	r := io.Reader(f.Reader(ctx))
	if fileio.DetermineType(args[0]) == fileio.Gzip {
		if r, err = gzip.NewReader(r); err != nil {
			return nil, errors.Wrapf(err, "input list %s", args[0])
		}
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		paths = append(paths, line)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read input list %s", args[0])
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("input list %s names no files", args[0])
	}
	return paths, nil
}

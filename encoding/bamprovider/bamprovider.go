package bamprovider

import (
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// BAMProvider reads a BAM or SAM file through grailbio/base/file, so Path may
// be any URL with a registered implementation, e.g. s3://bucket/x.bam.
type BAMProvider struct {
	// Path of the file.  Must be nonempty.
	Path string
	// Type selects the decoder.  Anything but SAM is decoded as BAM.
	Type FileType

	err errors.Once

	mu      sync.Mutex
	header  *sam.Header
	nActive int
}

// decoder is satisfied by both *bam.Reader and *sam.Reader.
type decoder interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

// openFile is one open handle on the provider's file.
type openFile struct {
	in  file.File
	dec decoder
	// bamr is non-nil for BAM input; it owns decompression goroutines that
	// need closing.
	bamr *bam.Reader
}

func (f *openFile) close() error {
	var err error
	if f.bamr != nil {
		err = f.bamr.Close()
	}
	if cerr := f.in.Close(vcontext.Background()); err == nil {
		err = cerr
	}
	return err
}

func (b *BAMProvider) open() (*openFile, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		return nil, err
	}
	f := &openFile{in: in}
	if b.Type == SAM {
		if f.dec, err = sam.NewReader(in.Reader(ctx)); err != nil {
			_ = in.Close(ctx)
			return nil, errors.E(err, "parsing SAM header", b.Path)
		}
		return f, nil
	}
	if f.bamr, err = bam.NewReader(in.Reader(ctx), 1); err != nil {
		_ = in.Close(ctx)
		return nil, errors.E(err, "parsing BAM header", b.Path)
	}
	f.dec = f.bamr
	return f, nil
}

// GetHeader implements Provider.  The header is read once and cached.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}
	f, err := b.open()
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	b.header = f.dec.Header()
	b.err.Set(f.close())
	return b.header, nil
}

// NewIterator implements Provider.  Every iterator opens the file anew.
func (b *BAMProvider) NewIterator() Iterator {
	f, err := b.open()
	if err != nil {
		b.err.Set(err)
		return NewErrorIterator(err)
	}
	b.mu.Lock()
	if b.header == nil {
		b.header = f.dec.Header()
	}
	b.nActive++
	b.mu.Unlock()
	return &bamIterator{provider: b, f: f}
}

// Close implements Provider.
func (b *BAMProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nActive != 0 {
		vlog.Fatalf("%s: provider closed with %d open iterators", b.Path, b.nActive)
	}
	return b.err.Err()
}

type bamIterator struct {
	provider *BAMProvider
	f        *openFile
	rec      *sam.Record
	err      error
	closed   bool
}

func (it *bamIterator) Scan() bool {
	if it.err != nil || it.closed {
		return false
	}
	if it.rec, it.err = it.f.dec.Read(); it.err != nil {
		it.rec = nil
		if it.err != io.EOF {
			it.err = errors.E(it.err, "reading", it.provider.Path)
		}
		return false
	}
	return true
}

func (it *bamIterator) Record() *sam.Record { return it.rec }

func (it *bamIterator) Err() error {
	if it.err == io.EOF {
		return nil
	}
	return it.err
}

func (it *bamIterator) Close() error {
	b := it.provider
	if it.closed {
		vlog.Fatalf("%s: iterator closed twice", b.Path)
	}
	it.closed = true
	err := it.Err()
	if cerr := it.f.close(); err == nil {
		err = cerr
	}
	b.mu.Lock()
	b.nActive--
	b.mu.Unlock()
	b.err.Set(err)
	return err
}

// errorIterator yields nothing and reports a fixed error.
type errorIterator struct{ err error }

func (it *errorIterator) Scan() bool          { return false }
func (it *errorIterator) Record() *sam.Record { panic("errorIterator.Record") }
func (it *errorIterator) Err() error          { return it.err }
func (it *errorIterator) Close() error        { return it.err }

// NewErrorIterator returns an Iterator that yields no records and reports err
// from Err and Close.
func NewErrorIterator(err error) Iterator {
	return &errorIterator{err: err}
}

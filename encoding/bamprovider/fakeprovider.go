package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// fakeProvider serves a fixed header and record list from memory.
type fakeProvider struct {
	header *sam.Header
	recs   []*sam.Record
	// tailErr is reported by every iterator once recs are exhausted.
	tailErr error
}

// NewFakeProvider creates an in-memory Provider for tests.  Every iterator
// yields copies of recs, so callers may rewrite the records they receive.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	return &fakeProvider{header: header, recs: recs}
}

// NewFakeProviderWithError is NewFakeProvider whose iterators fail with err
// after the last record.
func NewFakeProviderWithError(header *sam.Header, recs []*sam.Record, err error) Provider {
	return &fakeProvider{header: header, recs: recs, tailErr: err}
}

func (p *fakeProvider) GetHeader() (*sam.Header, error) { return p.header, nil }

func (p *fakeProvider) NewIterator() Iterator {
	return &sliceIterator{remaining: p.recs, tailErr: p.tailErr}
}

func (p *fakeProvider) Close() error { return nil }

type sliceIterator struct {
	remaining []*sam.Record
	cur       *sam.Record
	tailErr   error
}

func (it *sliceIterator) Scan() bool {
	if len(it.remaining) == 0 {
		it.cur = nil
		return false
	}
	src := it.remaining[0]
	it.remaining = it.remaining[1:]
	it.cur = sam.GetFromFreePool()
	*it.cur = *src
	it.cur.AuxFields = append(sam.AuxFields(nil), src.AuxFields...)
	return true
}

func (it *sliceIterator) Record() *sam.Record { return it.cur }

func (it *sliceIterator) Err() error {
	if len(it.remaining) > 0 {
		return nil
	}
	return it.tailErr
}

func (it *sliceIterator) Close() error { return it.Err() }

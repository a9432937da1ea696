package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const streamBufferSize = 64 * 1024

// element is one top-level record of the source. raw is only set for objects.
type element struct {
	raw  []byte
	kind jsoniter.ValueType
}

// recordIterator yields source records one at a time. Next is only called
// once the previous record has been handled, which is what bounds the
// number of records in flight. It returns io.EOF after the last record.
type recordIterator interface {
	Next() (element, error)
}

// tokenIterator walks either a top-level JSON array or a stream of
// concatenated objects (JSON lines).
type tokenIterator struct {
	iter  *jsoniter.Iterator
	lines bool
	done  bool
}

func newTokenIterator(iter *jsoniter.Iterator) (*tokenIterator, error) {
	switch next := iter.WhatIsNext(); next {
	case jsoniter.ArrayValue:
		return &tokenIterator{iter: iter}, nil
	case jsoniter.ObjectValue:
		return &tokenIterator{iter: iter, lines: true}, nil
	default:
		if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedSource, iter.Error)
		}
		if errors.Is(iter.Error, io.EOF) {
			return nil, fmt.Errorf("%w: empty source", ErrMalformedSource)
		}
		return nil, fmt.Errorf("%w: expected an array or objects at top level", ErrMalformedSource)
	}
}

// newStreamIterator parses r incrementally through a fixed-size buffer.
func newStreamIterator(r io.Reader) (*tokenIterator, error) {
	return newTokenIterator(jsoniter.Parse(json, r, streamBufferSize))
}

func (t *tokenIterator) Next() (element, error) {
	if t.done {
		return element{}, io.EOF
	}

	if t.lines {
		return t.nextLine()
	}
	return t.nextArrayItem()
}

func (t *tokenIterator) nextArrayItem() (element, error) {
	if !t.iter.ReadArray() {
		t.done = true
		if t.iter.Error != nil {
			return element{}, fmt.Errorf("%w: %w", ErrMalformedSource, t.iter.Error)
		}
		return element{}, io.EOF
	}
	return t.capture(t.iter.WhatIsNext())
}

func (t *tokenIterator) nextLine() (element, error) {
	next := t.iter.WhatIsNext()
	if next == jsoniter.InvalidValue {
		t.done = true
		if errors.Is(t.iter.Error, io.EOF) {
			return element{}, io.EOF
		}
		if t.iter.Error != nil {
			return element{}, fmt.Errorf("%w: %w", ErrMalformedSource, t.iter.Error)
		}
		return element{}, fmt.Errorf("%w: unexpected token between records", ErrMalformedSource)
	}
	return t.capture(next)
}

func (t *tokenIterator) capture(kind jsoniter.ValueType) (element, error) {
	if kind != jsoniter.ObjectValue {
		t.iter.Skip()
		if err := t.err(); err != nil {
			return element{}, err
		}
		return element{kind: kind}, nil
	}

	raw := t.iter.SkipAndReturnBytes()
	if err := t.err(); err != nil {
		return element{}, err
	}
	// End of input inside an object leaves it unterminated.
	if t.iter.Error != nil && !closesObject(raw) {
		t.done = true
		return element{}, fmt.Errorf("%w: truncated record at end of input", ErrMalformedSource)
	}
	return element{raw: raw, kind: kind}, nil
}

// err reports a structural failure. A bare io.EOF after a complete value in
// a JSON-lines stream is the normal end of input.
func (t *tokenIterator) err() error {
	if t.iter.Error == nil || (t.lines && errors.Is(t.iter.Error, io.EOF)) {
		return nil
	}
	t.done = true
	return fmt.Errorf("%w: %w", ErrMalformedSource, t.iter.Error)
}

func closesObject(raw []byte) bool {
	raw = bytes.TrimRight(raw, " \t\r\n")
	return len(raw) > 0 && raw[len(raw)-1] == '}'
}

// sliceIterator replays records that were fully parsed up front.
type sliceIterator struct {
	items []element
	pos   int
}

func (s *sliceIterator) Next() (element, error) {
	if s.pos >= len(s.items) {
		return element{}, io.EOF
	}
	item := s.items[s.pos]
	s.items[s.pos] = element{}
	s.pos++
	return item, nil
}

// loadAll reads and parses the whole source before any record is handed out.
func loadAll(r io.Reader) (*sliceIterator, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	it, err := newTokenIterator(jsoniter.ParseBytes(json, data))
	if err != nil {
		return nil, err
	}

	var items []element
	for {
		item, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &sliceIterator{items: items}, nil
}

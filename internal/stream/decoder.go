// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// =============================================================================
// FRAME DECODER
// =============================================================================

// Decoder splits a byte stream into newline-delimited records. Bytes are
// buffered until a newline arrives, so the records produced never depend on
// how the input was chunked.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf       []byte
	anomalies int
	log       zerolog.Logger
}

// NewDecoder creates a decoder that reports anomalies to log.
func NewDecoder(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Write appends chunk and returns every record completed by it, in order.
func (d *Decoder) Write(chunk []byte) []Record {
	d.buf = append(d.buf, chunk...)

	var out []Record
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		out = append(out, d.decodeLine(d.buf[start:start+i], true))
		start += i + 1
	}
	if start > 0 {
		n := copy(d.buf, d.buf[start:])
		d.buf = d.buf[:n]
	}
	return out
}

// Flush returns the unterminated residual as a final record. It reports
// false when nothing is buffered.
func (d *Decoder) Flush() (Record, bool) {
	if len(d.buf) == 0 {
		return Record{}, false
	}
	rec := d.decodeLine(d.buf, false)
	d.buf = d.buf[:0]
	return rec, true
}

// Buffered returns the number of bytes awaiting a newline.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Anomalies returns how many lines looked like JSON but failed to parse.
func (d *Decoder) Anomalies() int { return d.anomalies }

func (d *Decoder) decodeLine(line []byte, terminated bool) Record {
	line = bytes.TrimSuffix(line, []byte{'\r'})

	rec, ok, malformed := parseStructured(line)
	if ok {
		rec.Terminated = terminated
		return rec
	}

	text := strings.ToValidUTF8(string(line), "\uFFFD")
	if malformed {
		d.anomalies++
		d.log.Debug().
			Int("bytes", len(line)).
			Int("anomalies", d.anomalies).
			Msg("stream record is not valid JSON, treating as text")
	}
	return Record{
		Kind:       KindLiteral,
		Text:       text,
		Terminated: terminated,
		Anomaly:    malformed,
	}
}

// =============================================================================
// READER
// =============================================================================

const readChunkSize = 4096

// Reader yields records lazily from an io.Reader. It is not restartable:
// once Next returns io.EOF it keeps returning io.EOF.
type Reader struct {
	src     io.Reader
	dec     *Decoder
	pending []Record
	chunk   []byte
	done    bool
	err     error
}

// NewReader creates a reader over src.
func NewReader(src io.Reader, log zerolog.Logger) *Reader {
	return &Reader{
		src:   src,
		dec:   NewDecoder(log),
		chunk: make([]byte, readChunkSize),
	}
}

// Next returns the next record, io.EOF when the source is exhausted, or the
// source's read error.
func (r *Reader) Next() (Record, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return Record{}, r.err
		}
		if r.done {
			return Record{}, io.EOF
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.pending = append(r.pending, r.dec.Write(r.chunk[:n])...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
				if rec, ok := r.dec.Flush(); ok {
					r.pending = append(r.pending, rec)
				}
			} else {
				r.err = err
			}
		}
	}

	rec := r.pending[0]
	r.pending = r.pending[1:]
	return rec, nil
}

// Anomalies returns the decoder's anomaly count so far.
func (r *Reader) Anomalies() int { return r.dec.Anomalies() }

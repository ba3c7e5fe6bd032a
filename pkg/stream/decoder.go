// Package stream decodes the conversation response body into envelopes.
//
// The body is newline-joined JSON with no guaranteed alignment between
// network chunks and objects. Fragments are accumulated until they parse.
package stream

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/rs/zerolog/log"
)

const readSize = 4096

type Decoder struct {
	r       io.Reader
	buf     []byte
	pending []*api.Envelope
	readBuf []byte
	err     error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Feed adds one chunk of bytes and returns the envelopes completed by it, in
// order. Bytes are kept undecoded so that runes split between two chunks
// are joined back together.
func (d *Decoder) Feed(chunk []byte) []*api.Envelope {
	var ret []*api.Envelope
	for _, fragment := range bytes.Split(chunk, []byte{'\n'}) {
		if len(fragment) == 0 {
			continue
		}
		d.buf = append(d.buf, fragment...)
		if !json.Valid(d.buf) {
			log.Trace().Int("buffered", len(d.buf)).Msg("incomplete fragment, buffering")
			continue
		}

		if !isObject(d.buf) {
			log.Debug().Int("bytes", len(d.buf)).Msg("dropping JSON value that is not an object")
			d.buf = d.buf[:0]
			continue
		}

		e := &api.Envelope{}
		err := json.Unmarshal(d.buf, e)
		d.buf = d.buf[:0]
		if err != nil {
			log.Debug().Err(err).Msg("dropping JSON value that is not an envelope")
			continue
		}
		ret = append(ret, e)
	}
	return ret
}

// json.Unmarshal accepts null into a struct without touching it, so only
// objects count as envelopes.
func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// Residual returns the bytes buffered without forming a complete object.
func (d *Decoder) Residual() []byte {
	return append([]byte{}, d.buf...)
}

// Next returns the next envelope. It returns io.EOF once the reader is
// exhausted; whatever is still buffered at that point is discarded.
func (d *Decoder) Next() (*api.Envelope, error) {
	for {
		if len(d.pending) > 0 {
			e := d.pending[0]
			d.pending = d.pending[1:]
			return e, nil
		}
		if d.err != nil {
			return nil, d.err
		}
		if d.readBuf == nil {
			d.readBuf = make([]byte, readSize)
		}

		n, err := d.r.Read(d.readBuf)
		if n > 0 {
			d.pending = append(d.pending, d.Feed(d.readBuf[:n])...)
		}
		if err != nil {
			if err == io.EOF && len(d.buf) > 0 {
				log.Debug().Int("bytes", len(d.buf)).Msg("discarding unparsed residual at end of stream")
				d.buf = d.buf[:0]
			}
			d.err = err
		}
	}
}

// DecodeAll reads r to the end and returns every envelope.
func DecodeAll(r io.Reader) ([]*api.Envelope, error) {
	d := NewDecoder(r)
	ret := []*api.Envelope{}
	for {
		e, err := d.Next()
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return ret, err
		}
		ret = append(ret, e)
	}
}

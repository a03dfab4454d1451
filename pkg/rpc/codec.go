package rpc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/jingkaihe/enginelog/internal/errx"
)

// MaxFrameSize bounds a single request or response.
const MaxFrameSize = 10 * 1024 * 1024

// Codec frames messages on one stream. Encode and Decode are not safe for
// concurrent use; callers serialize writes.
type Codec interface {
	Name() string
	// Encode writes v as one frame.
	Encode(v any) error
	// Decode reads the next frame into v. A frame that cannot be decoded
	// yields an error wrapping ErrParse and the stream stays usable.
	Decode(v any) error
	// Unmarshal decodes RawParams read by this codec.
	Unmarshal(data []byte, v any) error
}

// CodecFactory builds a codec over a stream.
type CodecFactory func(r io.Reader, w io.Writer) Codec

// Codec names accepted by CodecByName.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// CodecByName returns the factory for "json" or "cbor".
func CodecByName(name string) (CodecFactory, error) {
	switch name {
	case "", CodecJSON:
		return NewJSONCodec, nil
	case CodecCBOR:
		return NewCBORCodec, nil
	default:
		return nil, errx.With(ErrUnknownCodec, ": %q", name)
	}
}

// RawParams holds an undecoded value in the encoding of the codec that
// read it.
type RawParams []byte

func (r RawParams) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawParams) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

func (r RawParams) MarshalCBOR() ([]byte, error) {
	if r == nil {
		return []byte{0xf6}, nil // CBOR null
	}
	return r, nil
}

func (r *RawParams) UnmarshalCBOR(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

type jsonCodec struct {
	r *bufio.Reader
	w io.Writer
}

// NewJSONCodec frames messages as newline-delimited JSON.
func NewJSONCodec(r io.Reader, w io.Writer) Codec {
	return &jsonCodec{r: bufio.NewReaderSize(r, 64*1024), w: w}
}

func (c *jsonCodec) Name() string { return CodecJSON }

func (c *jsonCodec) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.w.Write(append(data, '\n'))
	return err
}

func (c *jsonCodec) Decode(v any) error {
	for {
		line, err := c.readLine()
		if err != nil {
			return err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, v); err != nil {
			return errx.Wrap(ErrParse, err)
		}
		return nil
	}
}

func (c *jsonCodec) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := c.r.ReadLine()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
		if !isPrefix {
			return line, nil
		}
	}
}

func (c *jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type cborCodec struct {
	r io.Reader
	w io.Writer
}

// NewCBORCodec frames messages as CBOR values prefixed with a 4-byte
// big-endian length.
func NewCBORCodec(r io.Reader, w io.Writer) Codec {
	return &cborCodec{r: bufio.NewReader(r), w: w}
}

func (c *cborCodec) Name() string { return CodecCBOR }

func (c *cborCodec) Encode(v any) error {
	data, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(data)))
	copy(frame[4:], data)
	_, err = c.w.Write(frame)
	return err
}

func (c *cborCodec) Decode(v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return ErrFrameTooLarge
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(c.r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if err := cbor.Unmarshal(data, v); err != nil {
		return errx.Wrap(ErrParse, err)
	}
	return nil
}

func (c *cborCodec) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

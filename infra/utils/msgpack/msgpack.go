package msgpack

import (
	"bytes"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Converter - переиспользует один буфер, не потокобезопасен
type Converter struct {
	buf     *bytes.Buffer
	encoder *msgpack.Encoder
}

func New() Converter {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactFloats(true)
	enc.UseCompactInts(true)
	return Converter{
		buf:     &buf,
		encoder: enc,
	}
}

func (c Converter) Marshal(v interface{}) ([]byte, error) {
	c.buf.Reset()
	if err := c.encoder.Encode(v); err != nil {
		return nil, err
	}
	return io.ReadAll(c.buf)
}

func Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

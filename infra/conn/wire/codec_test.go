package wire

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"fuzzctl/entities"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	bodies := map[string][]byte{
		"empty":     {},
		"ascii":     []byte("hello"),
		"separator": []byte("a b,c=d 12 "),
		"utf8":      []byte("привет, мир = ✓ 日本語"),
		"binary":    {0, 1, 2, ' ', '9', 0xff},
	}
	tokens := append([]entities.Token{entities.ROK, entities.ERR}, entities.Commands...)
	for _, tok := range tokens {
		for name, body := range bodies {
			t.Run(string(tok)+"/"+name, func(t *testing.T) {
				msg, err := Decode(bytes.NewReader(Encode(tok, body)))
				require.NoError(t, err)
				assert.Equal(t, tok, msg.Token)
				assert.Equal(t, body, msg.Body)
			})
		}
	}
}

func TestEncodeMeasuresBytes(t *testing.T) {
	body := []byte("ёж")
	assert.Equal(t, "CTD 4 ёж", string(Encode(entities.CTD, body)))
	assert.Equal(t, "RST 0 ", string(EncodeEmpty(entities.RST)))
}

func TestDecodeReadsExactLength(t *testing.T) {
	// в теле пробелы и цифры, за кадром лежит следующий
	stream := "ROK 5 1 2 3ERR 0 "
	r := bufio.NewReader(strings.NewReader(stream))

	first, err := Decode(r)
	require.NoError(t, err)
	assert.Equal(t, entities.ROK, first.Token)
	assert.Equal(t, "1 2 3", string(first.Body))

	second, err := Decode(r)
	require.NoError(t, err)
	assert.Equal(t, entities.ERR, second.Token)
	assert.Empty(t, second.Body)

	_, err = Decode(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeUnbufferedReader(t *testing.T) {
	// io.MultiReader не умеет ReadByte, проверяем побайтовое чтение заголовка
	r := io.MultiReader(strings.NewReader("SFP 7 "), strings.NewReader("a=1,b=2GFP 1 a"))
	msg, err := Decode(r)
	require.NoError(t, err)
	assert.Equal(t, "a=1,b=2", string(msg.Body))

	msg, err = Decode(r)
	require.NoError(t, err)
	assert.Equal(t, entities.GFP, msg.Token)
	assert.Equal(t, "a", string(msg.Body))
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		truncated bool
	}{
		{name: "unknown token", in: "XYZ 0 "},
		{name: "lowercase token", in: "rok 0 "},
		{name: "no separator", in: "ROK-0 "},
		{name: "negative length", in: "ROK -1 "},
		{name: "hex length", in: "ROK 0x1 x"},
		{name: "empty length", in: "ROK  "},
		{name: "huge length", in: "ROK 99999999999 "},
		{name: "too many digits", in: "ROK 000000000000000000001 a"},
		{name: "short token", in: "RO", truncated: true},
		{name: "eof after token", in: "ROK", truncated: true},
		{name: "eof in length", in: "ROK 12", truncated: true},
		{name: "short body", in: "ROK 5 abc", truncated: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFraming)
			assert.Equal(t, tc.truncated, errors.Is(err, ErrTruncated), "err=%v", err)
		})
	}
}

func TestDecodeLeadingZeros(t *testing.T) {
	msg, err := Decode(strings.NewReader("ROK 003 abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(msg.Body))
}

func TestDecodePassesTransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("ROK 4 ab"), &failingReader{err: boom})
	_, err := Decode(r)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrFraming)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entities.Message{Token: entities.GFP, Body: []byte("k1,k2")}))
	assert.Equal(t, "GFP 5 k1,k2", buf.String())
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}

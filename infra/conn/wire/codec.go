// Package wire - кодек сообщений протокола монитора.
//
// Формат кадра: <TOK> ' ' <LEN> ' ' <BODY>, где LEN - десятичная длина тела в байтах.
// Тело читается ровно по длине, внутри него никаких разделителей не ищем.
package wire

import (
	"io"
	"strconv"

	"fuzzctl/entities"

	"github.com/pkg/errors"
)

const (
	separator = ' '
	// MaxBodyLen - больше этого монитор не присылает, все что длиннее считаем мусором
	MaxBodyLen = 16 << 20
	// 16 MiB влезает в 8 цифр, остальное с запасом под ведущие нули
	maxLenDigits = 20
)

var (
	ErrFraming = errors.New("wire: malformed frame")
	// ErrTruncated - поток кончился посреди кадра; errors.Is(ErrTruncated, ErrFraming) == true
	ErrTruncated = errors.WithMessage(ErrFraming, "wire: truncated frame")
)

// Encode - кадр с произвольным телом, длина считается в байтах
func Encode(token entities.Token, body []byte) []byte {
	lenStr := strconv.Itoa(len(body))
	buf := make([]byte, 0, entities.TokenLen+len(lenStr)+2+len(body))
	buf = append(buf, string(token)...)
	buf = append(buf, separator)
	buf = append(buf, lenStr...)
	buf = append(buf, separator)
	return append(buf, body...)
}

// EncodeEmpty - кадр без тела
func EncodeEmpty(token entities.Token) []byte {
	return Encode(token, nil)
}

// EncodeParams - тело вида key1=value1,key2=value2
func EncodeParams(token entities.Token, params map[string]string) ([]byte, error) {
	body, err := FormatParams(params)
	if err != nil {
		return nil, err
	}
	return Encode(token, body), nil
}

// EncodeKeys - тело из списка ключей через запятую (GFP и удаление ключей в SFP)
func EncodeKeys(token entities.Token, keys ...string) ([]byte, error) {
	body, err := FormatKeys(keys...)
	if err != nil {
		return nil, err
	}
	return Encode(token, body), nil
}

// Write - пишет кадр одним вызовом, чтобы не размазывать его по нескольким сегментам
func Write(w io.Writer, msg entities.Message) error {
	_, err := w.Write(Encode(msg.Token, msg.Body))
	return err
}

// Decode - читает ровно один кадр.
// Чистый EOF до первого байта возвращается как io.EOF (собеседник закрыл соединение),
// обрыв посреди кадра - ErrTruncated, кривой заголовок - ErrFraming.
func Decode(r io.Reader) (entities.Message, error) {
	var tok [entities.TokenLen]byte
	n, err := io.ReadFull(r, tok[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return entities.Message{}, io.EOF
		}
		return entities.Message{}, truncated(err, "token")
	}
	token := entities.Token(tok[:])
	if !token.Valid() {
		return entities.Message{}, errors.Wrapf(ErrFraming, "unknown token %q", tok[:])
	}

	br := byteReader(r)
	sep, err := br.ReadByte()
	if err != nil {
		return entities.Message{}, truncated(err, "separator")
	}
	if sep != separator {
		return entities.Message{}, errors.Wrapf(ErrFraming, "expected separator after token, got %q", sep)
	}

	bodyLen, err := readLength(br)
	if err != nil {
		return entities.Message{}, err
	}

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err = io.ReadFull(r, body); err != nil {
			return entities.Message{}, truncated(err, "body")
		}
	}
	return entities.Message{Token: token, Body: body}, nil
}

func readLength(br io.ByteReader) (int, error) {
	digits := make([]byte, 0, 8)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, truncated(err, "length")
		}
		if b == separator {
			break
		}
		if b < '0' || b > '9' {
			return 0, errors.Wrapf(ErrFraming, "non-digit %q in length", b)
		}
		if len(digits) == maxLenDigits {
			return 0, errors.Wrap(ErrFraming, "length field too long")
		}
		digits = append(digits, b)
	}
	if len(digits) == 0 {
		return 0, errors.Wrap(ErrFraming, "empty length")
	}
	n, err := strconv.ParseUint(string(digits), 10, 64)
	if err != nil || n > MaxBodyLen {
		return 0, errors.Wrapf(ErrFraming, "bad length %q", digits)
	}
	return int(n), nil
}

func truncated(err error, where string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrTruncated, "stream ended in %s", where)
	}
	// таймауты и прочие ошибки сокета отдаем как есть - это транспорт, а не формат
	return err
}

type singleByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (s *singleByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		return 0, err
	}
	return s.buf[0], nil
}

// byteReader - чтобы не перечитать лишнего, если r не буферизован
func byteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &singleByteReader{r: r}
}

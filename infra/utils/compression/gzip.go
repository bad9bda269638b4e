// Package compression - сжатие входов падений перед записью на диск
package compression

import (
	"bytes"
	"compress/zlib"
	"io"

	"fuzzctl/infra/utils/logger"

	"github.com/pkg/errors"
)

// Threshold - входы короче не сжимаем, заголовок zlib их только раздует
const Threshold = 1024

// Compress - сжимает data если она не короче Threshold, второй результат - было ли сжатие
func Compress(data []byte) ([]byte, bool, error) {
	if len(data) < Threshold {
		return data, false, nil
	}
	var buf bytes.Buffer
	zWriter, err := zlib.NewWriterLevel(&buf, zlib.BestSpeed)
	if err != nil {
		return nil, false, err
	}
	if _, err := zWriter.Write(data); err != nil {
		return nil, false, errors.Wrap(err, "failed to compress")
	}
	if err := zWriter.Close(); err != nil {
		return nil, false, errors.Wrap(err, "failed to flush compressed data")
	}
	return buf.Bytes(), true, nil
}

func DeCompress(data []byte) ([]byte, error) {
	zReader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open compressed data")
	}
	defer func() {
		if err := zReader.Close(); err != nil {
			logger.Errorf(err, "failed to close zlib reader")
		}
	}()
	return io.ReadAll(zReader)
}

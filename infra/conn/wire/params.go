package wire

import (
	"bytes"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	itemSep = ","
	kvSep   = "="
)

var ErrInvalidParameter = errors.New("wire: invalid parameter")

// FormatParams - key1=value1,key2=value2.
// Порядок ключей протоколом не гарантируется, сортируем чтобы кадр был детерминированным.
func FormatParams(params map[string]string) ([]byte, error) {
	if len(params) == 0 {
		return []byte{}, nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		if err := checkKey(k); err != nil {
			return nil, err
		}
		if strings.Contains(params[k], itemSep) {
			return nil, errors.Wrapf(ErrInvalidParameter, "value of %q contains %q", k, itemSep)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(itemSep)
		}
		buf.WriteString(k)
		buf.WriteString(kvSep)
		buf.WriteString(params[k])
	}
	return buf.Bytes(), nil
}

// FormatKeys - просто ключи через запятую
func FormatKeys(keys ...string) ([]byte, error) {
	for _, k := range keys {
		if err := checkKey(k); err != nil {
			return nil, err
		}
	}
	return []byte(strings.Join(keys, itemSep)), nil
}

func checkKey(k string) error {
	if k == "" {
		return errors.Wrap(ErrInvalidParameter, "empty key")
	}
	if strings.ContainsAny(k, itemSep+kvSep) {
		return errors.Wrapf(ErrInvalidParameter, "key %q contains separator", k)
	}
	return nil
}

// ParseParams - обратная к FormatParams, каждый элемент обязан содержать '='
func ParseParams(body []byte) (map[string]string, error) {
	set, removed, err := ParseParamUpdate(body)
	if err != nil {
		return nil, err
	}
	if len(removed) != 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "item %q has no value", removed[0])
	}
	return set, nil
}

// ParseParamUpdate - разбирает тело SFP: key=value выставляет значение,
// голый key без '=' означает удаление ключа
func ParseParamUpdate(body []byte) (set map[string]string, removed []string, err error) {
	set = make(map[string]string)
	if len(body) == 0 {
		return set, nil, nil
	}
	for _, item := range strings.Split(string(body), itemSep) {
		key, value, hasValue := strings.Cut(item, kvSep)
		if err := checkKey(key); err != nil {
			return nil, nil, err
		}
		if !hasValue {
			removed = append(removed, key)
			continue
		}
		set[key] = value
	}
	return set, removed, nil
}

// ParseKeys - тело GFP
func ParseKeys(body []byte) ([]string, error) {
	if len(body) == 0 {
		return nil, nil
	}
	keys := strings.Split(string(body), itemSep)
	for _, k := range keys {
		if err := checkKey(k); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

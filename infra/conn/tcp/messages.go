package tcp

import (
	"bytes"
	"time"

	"fuzzctl/entities"
	"fuzzctl/infra/conn/wire"

	"github.com/pkg/errors"
)

// тело ответа на CTD:
//	crashed=no,time=<RFC3339>
//	crashed=yes,time=<RFC3339>,crashcause=<text>
// crashcause всегда последний и забирает остаток тела целиком,
// так что в причине могут быть и запятые, и '='
const (
	keyCrashed = "crashed"
	keyTime    = "time"
	keyCause   = "crashcause"

	crashedYes = "yes"
	crashedNo  = "no"
)

var ErrMalformedOutcome = errors.New("malformed CTD reply")

// FormatOutcome - тело ROK на CTD
func FormatOutcome(o entities.Outcome) []byte {
	var buf bytes.Buffer
	buf.WriteString(keyCrashed + "=")
	if o.Crashed {
		buf.WriteString(crashedYes)
	} else {
		buf.WriteString(crashedNo)
	}
	buf.WriteString("," + keyTime + "=")
	buf.WriteString(o.Time.UTC().Format(time.RFC3339))
	if o.Crashed {
		buf.WriteString("," + keyCause + "=")
		buf.WriteString(o.Cause)
	}
	return buf.Bytes()
}

// ParseOutcome - разбор тела ROK на CTD, незнакомые ключи складываются в Extra
func ParseOutcome(body []byte) (entities.Outcome, error) {
	head, cause, hasCause := cutCause(body)

	params, err := wire.ParseParams(head)
	if err != nil {
		return entities.Outcome{}, errors.Wrapf(ErrMalformedOutcome, "%q: %v", body, err)
	}

	res := entities.Outcome{}
	switch params[keyCrashed] {
	case crashedYes:
		res.Crashed = true
	case crashedNo:
	default:
		return entities.Outcome{}, errors.Wrapf(ErrMalformedOutcome, "%q: bad %s value", body, keyCrashed)
	}
	rawTime, ok := params[keyTime]
	if !ok {
		return entities.Outcome{}, errors.Wrapf(ErrMalformedOutcome, "%q: no %s", body, keyTime)
	}
	if res.Time, err = time.Parse(time.RFC3339, rawTime); err != nil {
		return entities.Outcome{}, errors.Wrapf(ErrMalformedOutcome, "%q: %v", body, err)
	}
	if hasCause {
		res.Cause = string(cause)
	}

	delete(params, keyCrashed)
	delete(params, keyTime)
	if len(params) != 0 {
		res.Extra = params
	}
	return res, nil
}

func cutCause(body []byte) (head, cause []byte, found bool) {
	prefix := []byte(keyCause + "=")
	if bytes.HasPrefix(body, prefix) {
		return nil, body[len(prefix):], true
	}
	if i := bytes.Index(body, []byte(","+keyCause+"=")); i >= 0 {
		return body[:i], body[i+1+len(prefix):], true
	}
	return body, nil, false
}

package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// page is one decoded page envelope.
type page struct {
	entities []json.RawMessage

	// next and last are the raw paging cursors; nil when absent.
	next json.RawMessage
	last json.RawMessage
}

// errUnexpectedShape is returned for bodies that are neither a JSON object
// nor a JSON array.
var errUnexpectedShape = errors.New("page body is neither a JSON object nor a JSON array")

// parsePage decodes an upstream page. An object yields the value of
// dataProperty (one entity when it is an object, its elements when it is an
// array, nothing otherwise) and the paging cursors. An array yields its
// elements. Anything else yields an empty page and errUnexpectedShape.
func parsePage(body []byte, dataProperty string) (page, error) {
	var p page

	switch firstByte(body) {
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return p, err
		}

		data := envelope[dataProperty]
		switch firstByte(data) {
		case '{':
			p.entities = []json.RawMessage{data}
		case '[':
			if err := json.Unmarshal(data, &p.entities); err != nil {
				return page{}, err
			}
		}

		if raw, ok := envelope["paging"]; ok && firstByte(raw) == '{' {
			var paging struct {
				Next json.RawMessage `json:"next"`
				Last json.RawMessage `json:"last"`
			}
			if err := json.Unmarshal(raw, &paging); err == nil {
				p.next = paging.Next
				p.last = paging.Last
			}
		}
		return p, nil

	case '[':
		if err := json.Unmarshal(body, &p.entities); err != nil {
			return page{}, err
		}
		return p, nil
	}

	return p, errUnexpectedShape
}

// nextCursor returns the cursor of the following page, or false when
// pagination ends here: next is absent or null, next is greater than last,
// or the cursors cannot be compared. An absent or null last is unbounded.
func (p page) nextCursor() (string, bool) {
	next, ok := cursorValue(p.next)
	if !ok {
		return "", false
	}
	last, ok := cursorValue(p.last)
	if !ok {
		return next.text, true
	}

	switch {
	case next.numeric && last.numeric:
		if next.number > last.number {
			return "", false
		}
	case !next.numeric && !last.numeric:
		if next.text > last.text {
			return "", false
		}
	default:
		return "", false
	}
	return next.text, true
}

type cursor struct {
	text    string
	number  float64
	numeric bool
}

// cursorValue decodes a JSON number or string cursor.
func cursorValue(raw json.RawMessage) (cursor, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return cursor{}, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return cursor{}, false
		}
		return cursor{text: s}, true
	}

	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return cursor{}, false
	}
	return cursor{text: string(raw), number: n, numeric: true}, true
}

// stampUpdated copies the value of property into UpdatedField, keeping the
// member order of entity. Entities that are not objects or lack property are
// returned unchanged.
func stampUpdated(entity json.RawMessage, property string) (json.RawMessage, error) {
	if firstByte(entity) != '{' {
		return entity, nil
	}

	type member struct {
		key   string
		value json.RawMessage
	}

	dec := json.NewDecoder(bytes.NewReader(entity))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var (
		members []member
		source  json.RawMessage
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errUnexpectedShape
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if key == property {
			source = value
		}
		if key == UpdatedField {
			continue
		}
		members = append(members, member{key: key, value: value})
	}
	if source == nil {
		return entity, nil
	}
	members = append(members, member{key: UpdatedField, value: source})

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(m.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// diagnostic builds the error fragment emitted when the upstream rejects a
// page. A JSON body is embedded as is; anything else becomes a string.
func diagnostic(body []byte) []byte {
	var embedded json.RawMessage
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && json.Valid(trimmed) {
		embedded = trimmed
	} else {
		s, _ := json.Marshal(string(body))
		embedded = s
	}

	out, err := json.Marshal(struct {
		OriginalResponseText json.RawMessage `json:"original_response_text"`
	}{embedded})
	if err != nil {
		return []byte(`{"original_response_text":null}`)
	}
	return out
}

func firstByte(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

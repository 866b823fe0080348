package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeJSON decodes a single JSON document, keeping object keys in document
// order.
func DecodeJSON(data []byte) (Val, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Val{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Val{}, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

// DecodeVariables decodes a JSON object of request variables.
func DecodeVariables(data []byte) (Variables, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Variables{}, nil
	}
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	if v.Kind != Object {
		return nil, fmt.Errorf("variables must be a JSON object, got %s", v.Kind)
	}
	vars := make(Variables, len(v.Fields))
	for _, f := range v.Fields {
		vars[f.Name] = f.Value
	}
	return vars, nil
}

func decodeValue(dec *json.Decoder) (Val, error) {
	tok, err := dec.Token()
	if err != nil {
		return Val{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Val{}, nil
	case bool:
		return BoolVal(t), nil
	case string:
		return StringVal(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntVal(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Val{}, fmt.Errorf("invalid number %s: %w", t, err)
		}
		return FloatVal(f), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Val
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Val{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Val{}, err
			}
			return ListVal(items...), nil
		case '{':
			var fields []Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Val{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Val{}, fmt.Errorf("invalid object key %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Val{}, fmt.Errorf("%s: %w", key, err)
				}
				fields = append(fields, F(key, item))
			}
			if _, err := dec.Token(); err != nil {
				return Val{}, err
			}
			return ObjectVal(fields...), nil
		}
	}
	return Val{}, fmt.Errorf("unexpected JSON token %v", tok)
}

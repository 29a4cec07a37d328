package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
)

func isEmptyBody(body any) bool {
	if body == nil {
		return true
	}
	switch v := body.(type) {
	case url.Values:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case map[string]string:
		return len(v) == 0
	case json.RawMessage:
		return len(v) == 0
	}
	rv := reflect.ValueOf(body)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	}
	return false
}

// encodeQuery flattens body into query parameters. Values that are arrays
// become repeated keys; nested objects are sent as JSON text.
func encodeQuery(body any) (url.Values, error) {
	switch v := body.(type) {
	case url.Values:
		return v, nil
	case map[string]string:
		out := url.Values{}
		for key, value := range v {
			out.Set(key, value)
		}
		return out, nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("query body must encode as a JSON object: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := url.Values{}
	for _, key := range keys {
		switch value := fields[key].(type) {
		case nil:
		case []any:
			for _, item := range value {
				out.Add(key, queryValue(item))
			}
		default:
			out.Add(key, queryValue(value))
		}
	}
	return out, nil
}

func queryValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		encoded, _ := json.Marshal(v)
		return string(encoded)
	}
}

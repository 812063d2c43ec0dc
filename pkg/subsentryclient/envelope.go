package subsentryclient

import (
	"mime"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	emptyArray  = []byte("[]")
	emptyObject = []byte("{}")
)

// Unwrap returns the payload of a response body: data.data when present, else data, else the body itself.
func Unwrap(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	if inner := gjson.GetBytes(body, "data.data"); inner.Exists() {
		return []byte(inner.Raw)
	}
	if data := gjson.GetBytes(body, "data"); data.Exists() {
		return []byte(data.Raw)
	}
	return body
}

// UnwrapList always yields a JSON array. When the payload is an object, the first key
// holding an array is used. Anything else yields an empty array.
func UnwrapList(body []byte, keys ...string) []byte {
	payload := gjson.ParseBytes(Unwrap(body))
	if payload.IsArray() {
		return []byte(payload.Raw)
	}
	if payload.IsObject() {
		for _, key := range keys {
			if field := payload.Get(gjson.Escape(key)); field.IsArray() {
				return []byte(field.Raw)
			}
		}
	}
	return emptyArray
}

// UnwrapObject always yields a JSON object, empty when the payload is not one.
func UnwrapObject(body []byte) []byte {
	payload := gjson.ParseBytes(Unwrap(body))
	if payload.IsObject() {
		return []byte(payload.Raw)
	}
	return emptyObject
}

// Blob is a binary download.
type Blob struct {
	Data        []byte
	ContentType string
	Filename    string
}

// filenameFrom reads the attachment name, falling back to name.format.
func filenameFrom(disposition, name, format string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if fn := strings.TrimSpace(params["filename"]); fn != "" {
				return fn
			}
		}
	}
	if format == "" {
		return name
	}
	return name + "." + format
}

package overlay

import (
	"fmt"
	"reflect"
	"strconv"
)

// EdgeKey is the lookup key for one ordering of an endpoint pair
type EdgeKey string

// Key builds the key for the ordered pair (a, b).
// The index stores both Key(a, b) and Key(b, a) for every scored edge.
func Key(a, b string) EdgeKey {
	return EdgeKey(a + "→" + b)
}

// Identifier is implemented by endpoint objects that expose an id
type Identifier interface {
	EndpointID() string
}

// EndpointID normalizes an endpoint to its string identifier.
//
// The layout engine may hand out endpoints as raw ids or as resolved node
// objects; both must produce the same key. Unknown shapes yield "".
func EndpointID(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case Identifier:
		if rv := reflect.ValueOf(x); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return ""
		}
		return x.EndpointID()
	case map[string]any:
		if id, ok := x["id"]; ok && id != nil {
			return EndpointID(id)
		}
		if name, ok := x["name"]; ok && name != nil {
			return EndpointID(name)
		}
		return ""
	case fmt.Stringer:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

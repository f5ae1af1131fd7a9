package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arloliu/czi/errs"
	"github.com/tidwall/jsonc"
)

// Stream class names accepted by CreateInputStream.
const (
	ClassFile = "file"
	ClassHTTP = "http"
)

// PropertyType is the value type of a property bag entry.
type PropertyType uint8

const (
	PropertyString PropertyType = iota + 1
	PropertyBool
	PropertyInt32
)

// PropertyInfo describes a recognized property bag key.
type PropertyInfo struct {
	Name string
	Type PropertyType
}

// Property bag keys.
const (
	PropUserAgent      = "UserAgent"
	PropTimeout        = "Timeout"
	PropConnectTimeout = "ConnectTimeout"
	PropBearerToken    = "BearerToken"
	PropCookie         = "Cookie"
	PropProxy          = "Proxy"
	PropSslVerifyPeer  = "SslVerifyPeer"
)

var propertyInfos = []PropertyInfo{
	{PropUserAgent, PropertyString},
	{PropTimeout, PropertyInt32},
	{PropConnectTimeout, PropertyInt32},
	{PropBearerToken, PropertyString},
	{PropCookie, PropertyString},
	{PropProxy, PropertyString},
	{PropSslVerifyPeer, PropertyBool},
}

// ClassInfo describes a stream class.
type ClassInfo struct {
	Name        string
	Description string
}

var classes = []struct {
	info   ClassInfo
	create func(bag PropertyBag, uri string) (InputStream, error)
}{
	{
		ClassInfo{ClassFile, "local file opened read-only"},
		func(_ PropertyBag, uri string) (InputStream, error) {
			f, err := OpenFile(uri)
			if err != nil {
				return nil, err
			}

			return f, nil
		},
	},
	{
		ClassInfo{ClassHTTP, "http/https stream using range requests"},
		func(bag PropertyBag, uri string) (InputStream, error) {
			h, err := NewHTTP(uri, bag)
			if err != nil {
				return nil, err
			}

			return h, nil
		},
	},
}

// Classes returns the stream classes CreateInputStream can construct.
func Classes() []ClassInfo {
	out := make([]ClassInfo, len(classes))
	for i := range classes {
		out[i] = classes[i].info
	}

	return out
}

// PropertyBag holds typed stream creation properties.
type PropertyBag map[string]any

// String returns the string property name, or def.
func (b PropertyBag) String(name, def string) string {
	if v, ok := b[name].(string); ok {
		return v
	}

	return def
}

// Bool returns the boolean property name, or def.
func (b PropertyBag) Bool(name string, def bool) bool {
	if v, ok := b[name].(bool); ok {
		return v
	}

	return def
}

// Int32 returns the integer property name, or def.
func (b PropertyBag) Int32(name string, def int32) int32 {
	if v, ok := b[name].(int32); ok {
		return v
	}

	return def
}

// ParsePropertyBag parses a JSON object (comments and trailing commas allowed)
// into a PropertyBag. Unknown keys and values of the wrong type are rejected.
// An empty string yields an empty bag.
func ParsePropertyBag(s string) (PropertyBag, error) {
	bag := PropertyBag{}
	if strings.TrimSpace(s) == "" {
		return bag, nil
	}

	raw := map[string]any{}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(s)), &raw); err != nil {
		return nil, fmt.Errorf("%w: property bag: %v", errs.ErrInvalidArgument, err)
	}

	for key, value := range raw {
		info, ok := lookupProperty(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown property %q", errs.ErrInvalidArgument, key)
		}

		switch info.Type {
		case PropertyString:
			v, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: property %q must be a string", errs.ErrInvalidArgument, key)
			}
			bag[key] = v
		case PropertyBool:
			v, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: property %q must be a boolean", errs.ErrInvalidArgument, key)
			}
			bag[key] = v
		case PropertyInt32:
			v, ok := value.(float64)
			if !ok || v != float64(int32(v)) {
				return nil, fmt.Errorf("%w: property %q must be a 32-bit integer", errs.ErrInvalidArgument, key)
			}
			bag[key] = int32(v)
		}
	}

	return bag, nil
}

func lookupProperty(name string) (PropertyInfo, bool) {
	for _, info := range propertyInfos {
		if info.Name == name {
			return info, true
		}
	}

	return PropertyInfo{}, false
}

// CreateInputStream creates an input stream of the given class.
//
// Parameters:
//   - class: One of the names returned by Classes
//   - propertyBag: JSON object with creation properties, may be empty
//   - uri: File path or URL, interpreted by the class
//
// Returns:
//   - InputStream: The created stream
//   - error: ErrInvalidArgument for an unknown class or malformed property bag
func CreateInputStream(class, propertyBag, uri string) (InputStream, error) {
	bag, err := ParsePropertyBag(propertyBag)
	if err != nil {
		return nil, err
	}

	for i := range classes {
		if classes[i].info.Name == class {
			return classes[i].create(bag, uri)
		}
	}

	return nil, fmt.Errorf("%w: unknown stream class %q", errs.ErrInvalidArgument, class)
}

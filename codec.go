package navi

import (
	"encoding"
	stdjson "encoding/json"
	"fmt"
	"io"
	"reflect"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"
)

var (
	// json decodes inbound bodies.
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	// strictJSON encodes outbound payloads, it refuses values which have no JSON form
	// instead of writing base64 strings or empty objects for them.
	strictJSON = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}.Froze()
)

func init() {
	strictJSON.RegisterExtension(&strictEncodingExtension{})
}

var (
	closerType        = reflect.TypeOf((*io.Closer)(nil)).Elem()
	jsonMarshalerType = reflect.TypeOf((*stdjson.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// strictEncodingExtension rejects raw bytes, open resources such as sockets or files
// and structs without a single field visible to JSON.
type strictEncodingExtension struct {
	jsoniter.DummyExtension
}

func (e *strictEncodingExtension) CreateEncoder(typ reflect2.Type) jsoniter.ValEncoder {
	if err := unsupported(typ.Type1()); err != nil {
		return &errorEncoder{err: err}
	}
	return nil
}

func unsupported(t reflect.Type) error {
	if implements(t, jsonMarshalerType) || implements(t, textMarshalerType) {
		return nil
	}
	if implements(t, closerType) {
		return fmt.Errorf("%s is an open resource", t)
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return fmt.Errorf("%s is raw binary data", t)
		}
	case reflect.Struct:
		if !hasVisibleField(t) {
			return fmt.Errorf("%s has no exported fields", t)
		}
	}
	return nil
}

// implements checks t and *t, methods with pointer receivers are reachable when encoding.
func implements(t, iface reflect.Type) bool {
	return t.Implements(iface) || (t.Kind() != reflect.Ptr && reflect.PointerTo(t).Implements(iface))
}

func hasVisibleField(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("json") == "-" {
			continue
		}
		if f.IsExported() {
			return true
		}

		// promoted fields of an unexported embedded struct are still encoded.
		ft := f.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if f.Anonymous && ft.Kind() == reflect.Struct && hasVisibleField(ft) {
			return true
		}
	}
	return false
}

// errorEncoder fails the encoding of the whole payload.
type errorEncoder struct {
	err error
}

func (e *errorEncoder) IsEmpty(unsafe.Pointer) bool { return false }

func (e *errorEncoder) Encode(_ unsafe.Pointer, stream *jsoniter.Stream) {
	if stream.Error == nil {
		stream.Error = e.err
	}
}

package packet

import (
	"time"

	"github.com/solettaproject/soletta-sub010/ferr"
)

// Payload shapes for the built-in types, per spec §6's tag/symbol table and
// §4.1's descriptions of the error and http-response packets. These are
// exported so host code and leaf-node implementations (out of scope here,
// per spec §1) can build the `value` Create expects and read back Get's out.

// IRange is the int packet's payload (SOL_FLOW_PACKET_TYPE_IRANGE).
type IRange struct {
	Value, Min, Max, Step int32
}

// DRange is the float packet's payload (SOL_FLOW_PACKET_TYPE_DRANGE).
type DRange struct {
	Value, Min, Max, Step float64
}

// RGB is the rgb packet's payload.
type RGB struct {
	Red, Green, Blue          uint32
	RedMax, GreenMax, BlueMax uint32
}

// Vector is the direction-vector packet's payload.
type Vector struct {
	X, Y, Z, Scale float64
}

// Location is the location packet's payload.
type Location struct {
	Lat, Lon, Alt float64
}

// Timestamp is the timestamp packet's payload.
type Timestamp struct {
	Time time.Time
	Nsec int64
}

// ErrorValue is the error packet's payload: a numeric code and an owned
// message string (spec §6: "{code: signed integer, msg: nullable UTF-8
// string}").
type ErrorValue struct {
	Code int32
	Msg  string
}

// KeyValue is one cookie/header pair on an http-response packet.
type KeyValue struct {
	Key, Value string
}

// HTTPResponseValue is the http-request/http-response packet's payload
// (spec §4.1: "Deep-copies url, content type, two key/value parameter
// vectors (cookies, headers), and holds a ref to the content blob").
type HTTPResponseValue struct {
	URL         string
	ContentType string
	Cookies     []KeyValue
	Headers     []KeyValue
	Content     *Blob
}

func constPacket(t *Type, payload any) *Packet {
	return &Packet{typ: t, payload: payload}
}

func simpleValueType(name string, kind Kind, size int) *Type {
	return &Type{name: name, kind: kind, size: size}
}

var (
	// Any matches every other type during connection validation but cannot
	// instantiate packets (spec §3).
	Any = &Type{name: "ANY", kind: KindAny}

	// Empty is interned: create always returns the same shared packet
	// (spec §4.1's "interned singletons").
	Empty = func() *Type {
		t := &Type{name: "empty", kind: KindEmpty, size: 0}
		singleton := constPacket(t, nil)
		t.constant = func(any) *Packet { return singleton }
		return t
	}()

	// Boolean is interned, keyed by value: two shared packets, true/false.
	Boolean = func() *Type {
		t := &Type{name: "boolean", kind: KindBoolean, size: 1}
		trueP := constPacket(t, true)
		falseP := constPacket(t, false)
		t.constant = func(v any) *Packet {
			if b, _ := v.(bool); b {
				return trueP
			}
			return falseP
		}
		return t
	}()

	Byte = simpleValueType("byte", KindByte, 1)

	Int = func() *Type {
		t := simpleValueType("int", KindInt, 16)
		t.init = func(p *Packet, value any) error {
			v, ok := value.(IRange)
			if !ok {
				return ferr.New(ferr.InvalidArgument, "int packet requires an IRange value")
			}
			p.payload = v
			return nil
		}
		return t
	}()

	Float = func() *Type {
		t := simpleValueType("float", KindFloat, 32)
		t.init = func(p *Packet, value any) error {
			v, ok := value.(DRange)
			if !ok {
				return ferr.New(ferr.InvalidArgument, "float packet requires a DRange value")
			}
			p.payload = v
			return nil
		}
		return t
	}()

	String = simpleValueType("string", KindString, 0)

	// BlobType is named to avoid shadowing the Blob payload type.
	BlobType = blobBearingType("blob", KindBlob)

	JSONObject = blobBearingType("json-object", KindJSONObject)
	JSONArray  = blobBearingType("json-array", KindJSONArray)

	RGBType = simpleValueType("rgb", KindRGB, 24)

	VectorType = simpleValueType("direction-vector", KindVector, 32)

	LocationType = simpleValueType("location", KindLocation, 24)

	TimestampType = simpleValueType("timestamp", KindTimestamp, 16)

	ErrorType = func() *Type {
		t := simpleValueType("error", KindError, 0)
		t.init = func(p *Packet, value any) error {
			v, ok := value.(ErrorValue)
			if !ok {
				return ferr.New(ferr.InvalidArgument, "error packet requires an ErrorValue value")
			}
			p.payload = v
			return nil
		}
		t.dispose = func(p *Packet) {
			if v, ok := p.payload.(ErrorValue); ok {
				v.Msg = ""
				p.payload = v
			}
		}
		return t
	}()

	HTTPResponse = func() *Type {
		t := simpleValueType("http-request", KindHTTPResponse, 0)
		t.init = func(p *Packet, value any) error {
			v, ok := value.(HTTPResponseValue)
			if !ok {
				return ferr.New(ferr.InvalidArgument, "http-request packet requires an HTTPResponseValue value")
			}
			cp := v
			cp.Cookies = append([]KeyValue(nil), v.Cookies...)
			cp.Headers = append([]KeyValue(nil), v.Headers...)
			if v.Content != nil {
				cp.Content = v.Content.Ref()
			}
			p.payload = cp
			return nil
		}
		t.dispose = func(p *Packet) {
			if v, ok := p.payload.(HTTPResponseValue); ok && v.Content != nil {
				v.Content.Unref()
			}
		}
		t.duplicate = func(p *Packet) (*Packet, error) {
			v := p.payload.(HTTPResponseValue)
			return Create(t, v)
		}
		return t
	}()
)

// blobBearingType builds a Type whose payload is a *Blob: Init increments
// the refcount, Dispose decrements it, per spec §3 ("Blob-bearing packets
// ... wrap a reference-counted Blob payload: init increments and dispose
// decrements the refcount").
func blobBearingType(name string, kind Kind) *Type {
	t := simpleValueType(name, kind, 0)
	t.init = func(p *Packet, value any) error {
		b, ok := value.(*Blob)
		if !ok || b == nil {
			return ferr.New(ferr.InvalidArgument, name+" packet requires a non-nil *Blob value")
		}
		p.payload = b.Ref()
		return nil
	}
	t.dispose = func(p *Packet) {
		if b, ok := p.payload.(*Blob); ok {
			b.Unref()
		}
	}
	t.duplicate = func(p *Packet) (*Packet, error) {
		b := p.payload.(*Blob)
		return Create(t, b)
	}
	return t
}

// Builtins lists every non-ANY, non-composed built-in type, keyed by the
// tag names from spec §6's symbol table. Used by the composed meta-node's
// schema parser to resolve `name(tag)` tokens.
var Builtins = map[string]*Type{
	"int":              Int,
	"float":            Float,
	"string":           String,
	"boolean":          Boolean,
	"byte":             Byte,
	"blob":             BlobType,
	"rgb":              RGBType,
	"location":         LocationType,
	"timestamp":        TimestampType,
	"direction-vector": VectorType,
	"error":            ErrorType,
	"json-object":      JSONObject,
	"json-array":       JSONArray,
	"http-request":     HTTPResponse,
}

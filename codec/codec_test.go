package codec

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type profile struct {
	ID   string   `json:"id" cbor:"id" msgpack:"id"`
	Tags []string `json:"tags" cbor:"tags" msgpack:"tags"`
}

func TestStructCodecs(t *testing.T) {
	in := profile{ID: "42", Tags: []string{"12", "14"}}
	codecs := map[string]Codec[profile]{
		"json":     JSON[profile]{},
		"msgpack":  Msgpack[profile]{},
		"cbor":     MustCBOR[profile](false),
		"cbor-det": MustCBOR[profile](true),
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			b, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(in, out) {
				t.Fatalf("got %+v want %+v", out, in)
			}
		})
	}
}

func TestCBORDeterministicMapOrder(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	a := map[string]int{}
	b := map[string]int{}
	keys := []string{"zeta", "alpha", "mid", "beta", "omega"}
	for i, k := range keys {
		a[k] = i
	}
	for i := len(keys) - 1; i >= 0; i-- {
		b[keys[i]] = i
	}
	ea, err := c.Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	eb, err := c.Encode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ea, eb) {
		t.Fatalf("deterministic CBOR produced different bytes for equal maps")
	}
}

func TestMsgpackAnyKeepsStrings(t *testing.T) {
	c := Msgpack[any]{}
	b, err := c.Encode("12")
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := v.(string); !ok || s != "12" {
		t.Fatalf("got %T(%v)", v, v)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	in := wrapperspb.String("user_42")
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !proto.Equal(in, out) {
		t.Fatalf("got %v want %v", out, in)
	}
}

func TestRawCodecs(t *testing.T) {
	b, _ := Bytes{}.Encode([]byte{1, 2})
	if out, _ := (Bytes{}).Decode(b); !bytes.Equal(out, []byte{1, 2}) {
		t.Fatalf("bytes mismatch: %v", out)
	}
	s, _ := String{}.Encode("héllo")
	if out, _ := (String{}).Decode(s); out != "héllo" {
		t.Fatalf("string mismatch: %q", out)
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
	if v, err := c.Decode([]byte("1234")); err != nil || v != "1234" {
		t.Fatalf("boundary decode: v=%q err=%v", v, err)
	}
	unlimited := Limit[string]{Inner: String{}}
	if _, err := unlimited.Decode([]byte(strings.Repeat("x", 1<<12))); err != nil {
		t.Fatalf("MaxDecode=0 must disable limiting: %v", err)
	}
}

package packet

import "testing"

func TestAnyCannotInstantiate(t *testing.T) {
	if _, err := Create(Any, nil); err == nil {
		t.Fatal("expected error creating a packet of type ANY")
	}
	if _, err := Create(nil, nil); err == nil {
		t.Fatal("expected error creating a packet of nil type")
	}
}

func TestEmptyIsInterned(t *testing.T) {
	a, err := Create(Empty, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Create(Empty, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("expected the same interned empty packet")
	}
	// destroy is a no-op for constant-backed types
	Destroy(a)
	c, err := Create(Empty, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c != a {
		t.Fatal("expected empty packet to still be the interned singleton after Destroy")
	}
}

func TestBooleanIsInternedPerValue(t *testing.T) {
	t1, _ := Create(Boolean, true)
	t2, _ := Create(Boolean, true)
	f1, _ := Create(Boolean, false)
	if t1 != t2 {
		t.Fatal("expected true packets to be the same singleton")
	}
	if t1 == f1 {
		t.Fatal("expected true and false to be different singletons")
	}

	var out bool
	if err := Get(f1, &out); err != nil {
		t.Fatal(err)
	}
	if out != false {
		t.Fatal("expected false")
	}
}

func TestIntRoundTrip(t *testing.T) {
	p, err := Create(Int, IRange{Value: 42, Min: 0, Max: 100, Step: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer Destroy(p)

	var out IRange
	if err := Get(p, &out); err != nil {
		t.Fatal(err)
	}
	if out.Value != 42 {
		t.Fatalf("got %d, want 42", out.Value)
	}
}

func TestBlobRefcounting(t *testing.T) {
	b := NewBlob([]byte("hello"), "text/plain")
	p, err := Create(BlobType, b)
	if err != nil {
		t.Fatal(err)
	}
	if b.RefCount() != 2 { // 1 from NewBlob, 1 from Init's Ref
		t.Fatalf("refcount = %d, want 2", b.RefCount())
	}

	dup, err := Duplicate(p)
	if err != nil {
		t.Fatal(err)
	}
	if b.RefCount() != 3 {
		t.Fatalf("refcount after duplicate = %d, want 3", b.RefCount())
	}

	Destroy(p)
	if b.RefCount() != 2 {
		t.Fatalf("refcount after destroying original = %d, want 2", b.RefCount())
	}
	Destroy(dup)
	if b.RefCount() != 1 {
		t.Fatalf("refcount after destroying duplicate = %d, want 1", b.RefCount())
	}
}

func TestErrorPacket(t *testing.T) {
	p, err := Create(ErrorType, ErrorValue{Code: -5, Msg: "boom"})
	if err != nil {
		t.Fatal(err)
	}
	var out ErrorValue
	if err := Get(p, &out); err != nil {
		t.Fatal(err)
	}
	if out.Code != -5 || out.Msg != "boom" {
		t.Fatalf("got %+v", out)
	}
	Destroy(p)
}

func TestHTTPResponseDeepCopy(t *testing.T) {
	content := NewBlob([]byte("body"), "text/plain")
	cookies := []KeyValue{{Key: "a", Value: "1"}}
	src := HTTPResponseValue{
		URL:         "http://example.com",
		ContentType: "text/plain",
		Cookies:     cookies,
		Content:     content,
	}
	p, err := Create(HTTPResponse, src)
	if err != nil {
		t.Fatal(err)
	}
	// mutating the original slice must not affect the packet's copy
	cookies[0].Value = "mutated"

	var out HTTPResponseValue
	if err := Get(p, &out); err != nil {
		t.Fatal(err)
	}
	if out.Cookies[0].Value != "1" {
		t.Fatalf("expected deep copy, got %q", out.Cookies[0].Value)
	}
	if content.RefCount() != 2 {
		t.Fatalf("refcount = %d, want 2", content.RefCount())
	}
	Destroy(p)
	if content.RefCount() != 1 {
		t.Fatalf("refcount after destroy = %d, want 1", content.RefCount())
	}
}

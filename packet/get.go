package packet

import (
	"reflect"

	"github.com/solettaproject/soletta-sub010/ferr"
)

// defaultGet copies p.payload into *out via reflection, standing in for the
// source's raw memcpy default: out must be a pointer to the same concrete
// type as the stored payload.
func defaultGet(p *Packet, out any) error {
	if out == nil {
		return ferr.New(ferr.InvalidArgument, "nil out pointer")
	}
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Ptr || dst.IsNil() {
		return ferr.New(ferr.InvalidArgument, "out must be a non-nil pointer")
	}
	src := reflect.ValueOf(p.payload)
	if !src.IsValid() {
		dst.Elem().Set(reflect.Zero(dst.Elem().Type()))
		return nil
	}
	if !src.Type().AssignableTo(dst.Elem().Type()) {
		return ferr.Newf(ferr.InvalidType, "cannot copy %s payload into %s", src.Type(), dst.Elem().Type())
	}
	dst.Elem().Set(src)
	return nil
}

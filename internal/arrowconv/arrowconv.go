// Package arrowconv maps native Go scalar slices onto Arrow arrays and back.
//
// Data crossing the node boundary is carried as a dynamically typed Arrow
// array. Only four element types are supported: uint8, int32, float32 and
// uint64. FromSlice copies a native slice into a freshly allocated array of
// the matching Arrow type; Values performs the inverse dispatch, checking
// the array's runtime type tag and reinterpreting the value buffer as a
// concrete slice without copying.
//
// Values distinguishes two edge conditions that callers must treat very
// differently: an absent payload (nil array or Null-typed array) is reported
// via ErrNoData, while a payload of the wrong element type is reported via
// TypeMismatchError. Reading a buffer at the wrong element width would
// silently corrupt the data, so callers must never fall through a mismatch.
package arrowconv

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Scalar enumerates the element types supported at the node boundary.
type Scalar interface {
	uint8 | int32 | float32 | uint64
}

// ErrNoData reports that an input carries no payload. Callers surface this
// as an absence sentinel, not as a failure.
var ErrNoData = errors.New("input carries no data")

// TypeMismatchError reports a typed read against an array of a different
// element type.
type TypeMismatchError struct {
	Want arrow.DataType
	Got  arrow.DataType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("input data is typed %s, requested %s", e.Got, e.Want)
}

// DataType returns the Arrow type corresponding to the scalar type T.
func DataType[T Scalar]() arrow.DataType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return arrow.PrimitiveTypes.Uint8
	case int32:
		return arrow.PrimitiveTypes.Int32
	case float32:
		return arrow.PrimitiveTypes.Float32
	default:
		return arrow.PrimitiveTypes.Uint64
	}
}

// FromSlice copies vals into a new Arrow array of the matching primitive
// type, allocated from mem. The caller owns the returned array and must
// Release it.
func FromSlice[T Scalar](mem memory.Allocator, vals []T) arrow.Array {
	switch v := any(vals).(type) {
	case []uint8:
		b := array.NewUint8Builder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray()
	case []int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray()
	case []float32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray()
	case []uint64:
		b := array.NewUint64Builder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray()
	default:
		panic(fmt.Sprintf("arrowconv: unsupported slice type %T", vals))
	}
}

// Values reinterprets arr's value buffer as a []T without copying. The
// returned slice aliases memory owned by arr and is valid only while arr is
// retained.
//
// A nil or Null-typed array yields ErrNoData. An array of any other element
// type than T yields a TypeMismatchError.
func Values[T Scalar](arr arrow.Array) ([]T, error) {
	if arr == nil || arr.DataType().ID() == arrow.NULL {
		return nil, ErrNoData
	}
	want := DataType[T]()
	if arr.DataType().ID() != want.ID() {
		return nil, &TypeMismatchError{Want: want, Got: arr.DataType()}
	}

	switch a := arr.(type) {
	case *array.Uint8:
		return any(a.Uint8Values()).([]T), nil
	case *array.Int32:
		return any(a.Int32Values()).([]T), nil
	case *array.Float32:
		return any(a.Float32Values()).([]T), nil
	case *array.Uint64:
		return any(a.Uint64Values()).([]T), nil
	default:
		return nil, &TypeMismatchError{Want: want, Got: arr.DataType()}
	}
}

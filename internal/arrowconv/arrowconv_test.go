package arrowconv

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip[T Scalar](t *testing.T, vals []T) {
	t.Helper()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr := FromSlice(mem, vals)
	defer arr.Release()

	require.Equal(t, len(vals), arr.Len())
	assert.Equal(t, DataType[T]().ID(), arr.DataType().ID())

	got, err := Values[T](arr)
	require.NoError(t, err)
	if diff := cmp.Diff(vals, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromSlice_RoundTrip(t *testing.T) {
	roundTrip(t, []uint8{0, 1, 2, 255})
	roundTrip(t, []int32{-2, -1, 0, 1 << 30})
	roundTrip(t, []float32{1.0, 2.0, 3.0})
	roundTrip(t, []uint64{0, 1, 1 << 62})
}

func TestFromSlice_Empty(t *testing.T) {
	arr := FromSlice[float32](memory.DefaultAllocator, nil)
	defer arr.Release()

	require.Equal(t, 0, arr.Len())

	got, err := Values[float32](arr)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFromSlice_CopiesInput(t *testing.T) {
	vals := []int32{1, 2, 3}
	arr := FromSlice(memory.DefaultAllocator, vals)
	defer arr.Release()

	vals[0] = 99

	got, err := Values[int32](arr)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got[0])
}

func TestValues_ZeroCopy(t *testing.T) {
	arr := FromSlice(memory.DefaultAllocator, []float32{1, 2, 3})
	defer arr.Release()

	got, err := Values[float32](arr)
	require.NoError(t, err)

	// The returned slice must alias the array's value buffer, not a copy.
	base := unsafe.Pointer(&arr.Data().Buffers()[1].Bytes()[0])
	assert.Equal(t, base, unsafe.Pointer(&got[0]))
}

func TestValues_NilArray(t *testing.T) {
	_, err := Values[uint8](nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestValues_NullArray(t *testing.T) {
	arr := array.NewNull(4)
	defer arr.Release()

	_, err := Values[uint64](arr)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestValues_TypeMismatch(t *testing.T) {
	arr := FromSlice(memory.DefaultAllocator, []float32{1, 2, 3})
	defer arr.Release()

	_, err := Values[int32](arr)

	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch), "want TypeMismatchError, got %v", err)
	assert.Equal(t, arrow.PrimitiveTypes.Int32.ID(), mismatch.Want.ID())
	assert.Equal(t, arrow.PrimitiveTypes.Float32.ID(), mismatch.Got.ID())
	assert.Contains(t, mismatch.Error(), "float32")
	assert.Contains(t, mismatch.Error(), "int32")
}

func TestValues_MismatchAllPairings(t *testing.T) {
	mem := memory.DefaultAllocator

	arrays := map[string]arrow.Array{
		"u8":  FromSlice(mem, []uint8{1}),
		"i32": FromSlice(mem, []int32{1}),
		"f32": FromSlice(mem, []float32{1}),
		"u64": FromSlice(mem, []uint64{1}),
	}
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	read := map[string]func(arrow.Array) error{
		"u8":  func(a arrow.Array) error { _, err := Values[uint8](a); return err },
		"i32": func(a arrow.Array) error { _, err := Values[int32](a); return err },
		"f32": func(a arrow.Array) error { _, err := Values[float32](a); return err },
		"u64": func(a arrow.Array) error { _, err := Values[uint64](a); return err },
	}

	for declared, arr := range arrays {
		for requested, fn := range read {
			err := fn(arr)
			if declared == requested {
				assert.NoError(t, err, "declared=%s requested=%s", declared, requested)
				continue
			}
			var mismatch *TypeMismatchError
			assert.True(t, errors.As(err, &mismatch),
				"declared=%s requested=%s: want TypeMismatchError, got %v", declared, requested, err)
		}
	}
}

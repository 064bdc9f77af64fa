package postprocess

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/x448/float16"
)

func TestNewTensorFloat16(t *testing.T) {

	values := []float32{0, 0.5, -2, 320, 0.2}
	buf := make([]uint16, len(values))

	for i, v := range values {
		buf[i] = float16.Fromfloat32(v).Bits()
	}

	tensor, err := NewTensorFloat16([]int{1, 5}, buf)

	if err != nil {
		t.Fatalf("NewTensorFloat16 failed: %v", err)
	}

	for i, v := range values {
		// 0.2 is not exact in half precision
		if math.Abs(float64(tensor.Data[i]-v)) > 1e-3 {
			t.Errorf("value %d: expected %f, got %f", i, v, tensor.Data[i])
		}
	}
}

func TestDecodeTensor(t *testing.T) {

	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-3))

	tensor, err := DecodeTensor([]int{1, 2}, Float32, raw)

	if err != nil {
		t.Fatalf("DecodeTensor failed: %v", err)
	}

	if tensor.Data[0] != 1.5 || tensor.Data[1] != -3 {
		t.Errorf("unexpected data %v", tensor.Data)
	}

	half := make([]byte, 4)
	binary.LittleEndian.PutUint16(half[0:], float16.Fromfloat32(0.25).Bits())
	binary.LittleEndian.PutUint16(half[2:], float16.Fromfloat32(8).Bits())

	tensor, err = DecodeTensor([]int{2}, Float16, half)

	if err != nil {
		t.Fatalf("DecodeTensor float16 failed: %v", err)
	}

	if tensor.Data[0] != 0.25 || tensor.Data[1] != 8 {
		t.Errorf("unexpected data %v", tensor.Data)
	}
}

func TestDecodeTensorErrors(t *testing.T) {

	tests := []struct {
		name  string
		shape []int
		dtype DType
		raw   []byte
	}{
		{"shape mismatch", []int{1, 3}, Float32, make([]byte, 8)},
		{"ragged float32", []int{1}, Float32, make([]byte, 5)},
		{"ragged float16", []int{1}, Float16, make([]byte, 3)},
		{"zero dimension", []int{0, 2}, Float32, nil},
		{"unknown type", []int{1}, DType("int8"), make([]byte, 1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeTensor(tc.shape, tc.dtype, tc.raw); err == nil {
				t.Error("expected error")
			}
		})
	}
}

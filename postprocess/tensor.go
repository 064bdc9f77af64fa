package postprocess

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// DType is the element type of raw tensor data
type DType string

const (
	Float32 DType = "float32"
	Float16 DType = "float16"
)

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// Tensor is a dense float32 model output in row major order
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor returns a tensor after checking the data length matches the
// shape
func NewTensor(shape []int, data []float32) (Tensor, error) {

	n := 1
	for _, d := range shape {
		if d <= 0 {
			return Tensor{}, fmt.Errorf("invalid tensor shape %v", shape)
		}
		n *= d
	}

	if len(shape) == 0 || n != len(data) {
		return Tensor{}, fmt.Errorf("tensor shape %v needs %d elements, got %d", shape, n, len(data))
	}

	return Tensor{Shape: shape, Data: data}, nil
}

// NewTensorFloat16 converts a float16 buffer to a float32 tensor as Go has
// no native FP16 support
func NewTensorFloat16(shape []int, buf []uint16) (Tensor, error) {

	data := make([]float32, len(buf))

	for i, v := range buf {
		data[i] = f16LookupTable[v]
	}

	return NewTensor(shape, data)
}

// DecodeTensor builds a tensor from little endian encoded raw bytes of the
// given element type
func DecodeTensor(shape []int, dtype DType, raw []byte) (Tensor, error) {

	switch dtype {
	case Float32:
		if len(raw)%4 != 0 {
			return Tensor{}, fmt.Errorf("float32 buffer length %d not a multiple of 4", len(raw))
		}

		data := make([]float32, len(raw)/4)

		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}

		return NewTensor(shape, data)

	case Float16:
		if len(raw)%2 != 0 {
			return Tensor{}, fmt.Errorf("float16 buffer length %d not a multiple of 2", len(raw))
		}

		buf := make([]uint16, len(raw)/2)

		for i := range buf {
			buf[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}

		return NewTensorFloat16(shape, buf)

	default:
		return Tensor{}, fmt.Errorf("unsupported tensor type %q", dtype)
	}
}

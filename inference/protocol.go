package inference

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxMessageSize caps a single framed message, larger length prefixes are
// treated as a corrupt stream
const MaxMessageSize = 64 << 20

// ErrMessageTooLarge is returned when a length prefix exceeds MaxMessageSize
var ErrMessageTooLarge = errors.New("message exceeds maximum size")

// Request is sent to the worker process for each frame
type Request struct {
	// Frame is the packed RGB pixel data, row major
	Frame    []byte `msgpack:"frame_data"`
	Width    int    `msgpack:"width"`
	Height   int    `msgpack:"height"`
	Channels int    `msgpack:"channels"`
	Seq      uint64 `msgpack:"seq"`
}

// Response is the raw model output returned by the worker process
type Response struct {
	Seq   uint64 `msgpack:"seq"`
	Shape []int  `msgpack:"shape"`
	// DType is float32 or float16, data is little endian
	DType string `msgpack:"dtype"`
	Data  []byte `msgpack:"data"`
	// Error is set instead of the tensor fields when inference failed
	Error       string  `msgpack:"error,omitempty"`
	InferenceMS float64 `msgpack:"inference_ms"`
}

// WriteMessage msgpack encodes v and writes it with a 4 byte big endian
// length prefix
func WriteMessage(w io.Writer, v interface{}) error {

	b, err := msgpack.Marshal(v)

	if err != nil {
		return fmt.Errorf("failed to marshal msgpack message: %w", err)
	}

	if len(b) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	// single write so the prefix and body cannot interleave with another
	// writer on a pipe
	buf := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(buf, uint32(len(b)))
	copy(buf[4:], b)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// ReadMessage reads one length prefixed msgpack message into v.  io.EOF is
// returned unwrapped when the stream ends cleanly between messages.
func ReadMessage(r io.Reader, v interface{}) error {

	var lengthBuf [4]byte

	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("failed to read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(lengthBuf[:])

	if n > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}

	data := make([]byte, n)

	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read message body of %d bytes: %w", n, err)
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal msgpack message: %w", err)
	}

	return nil
}

// rgbBytes packs an image into 3 bytes per pixel RGB appended to dst
func rgbBytes(dst []byte, img image.Image) ([]byte, int, int) {

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := dst

	var pix []byte
	var stride int

	switch m := img.(type) {
	case *image.NRGBA:
		pix, stride = m.Pix[m.PixOffset(b.Min.X, b.Min.Y):], m.Stride
	case *image.RGBA:
		pix, stride = m.Pix[m.PixOffset(b.Min.X, b.Min.Y):], m.Stride
	}

	if pix != nil {
		for y := 0; y < h; y++ {
			row := pix[y*stride : y*stride+w*4]
			for x := 0; x < len(row); x += 4 {
				out = append(out, row[x], row[x+1], row[x+2])
			}
		}
		return out, w, h
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}

	return out, w, h
}

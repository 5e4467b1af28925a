package modelfile

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// Tensor is a named dataset: a shape and its row-major values.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Writer writes a model container file.
type Writer struct {
	file   *os.File
	dtype  DType
	closed bool
}

// NewWriter creates path, storing elements as dtype.
func NewWriter(path string, dtype DType) (*Writer, error) {
	if dtype.Size() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, dtype)
	}
	//nolint:gosec // G304: model paths come from the user.
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &Writer{file: file, dtype: dtype}, nil
}

// WriteFile writes tensors and metadata to path in one call.
func WriteFile(path string, tensors map[string]Tensor, metadata map[string]string, dtype DType) error {
	w, err := NewWriter(path, dtype)
	if err != nil {
		return err
	}
	if err := w.Write(tensors, metadata); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Write writes the header followed by every tensor's data.
// Tensors are laid out in alphabetical order by name.
func (w *Writer) Write(tensors map[string]Tensor, metadata map[string]string) error {
	if w.closed {
		return ErrClosed
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, name := range names {
		t := tensors[name]
		info := TensorInfo{DType: w.dtype, Shape: t.Shape}
		if info.NumElements() != len(t.Data) {
			return fmt.Errorf("tensor %s: shape %v holds %d values, got %d", name, t.Shape, info.NumElements(), len(t.Data))
		}
		size := int64(len(t.Data) * w.dtype.Size())
		info.DataOffsets = [2]int64{offset, offset + size}
		header[name] = info
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	buf := bufio.NewWriter(w.file)
	if err := binary.Write(buf, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := buf.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	scratch := make([]byte, 8)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			var b []byte
			switch w.dtype {
			case F32:
				binary.LittleEndian.PutUint32(scratch, math.Float32bits(float32(v)))
				b = scratch[:4]
			default:
				binary.LittleEndian.PutUint64(scratch, math.Float64bits(v))
				b = scratch[:8]
			}
			if _, err := buf.Write(b); err != nil {
				return fmt.Errorf("failed to write tensor %s: %w", name, err)
			}
		}
	}
	return buf.Flush()
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

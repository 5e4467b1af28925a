package modelfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// Reader reads tensors and metadata from a model container file.
type Reader struct {
	file       *os.File
	header     Header
	dataOffset int64
}

// Open opens path and validates its header.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: model paths come from the user.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	r, err := newReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func newReader(file *os.File) (*Reader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize || int64(headerSize) > stat.Size()-8 { //nolint:gosec // bounded above
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	dataOffset := int64(8 + headerSize) //nolint:gosec // bounded by MaxHeaderSize
	if err := header.Validate(stat.Size() - dataOffset); err != nil {
		return nil, err
	}

	return &Reader{
		file:       file,
		header:     header,
		dataOffset: dataOffset,
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the header metadata map.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the stored tensor names in sorted order.
func (r *Reader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a tensor named name is stored.
func (r *Reader) Has(name string) bool {
	_, ok := r.header.Tensors[name]
	return ok
}

// TensorInfo returns the header entry for name.
func (r *Reader) TensorInfo(name string) (TensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return info, nil
}

// ReadTensorData reads the raw bytes of tensor name.
func (r *Reader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	start := r.dataOffset + info.DataOffsets[0]
	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.file.ReadAt(data, start); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}
	return data, nil
}

// Tensor reads tensor name, widening F32 storage to float64.
func (r *Reader) Tensor(name string) (Tensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return Tensor{}, err
	}
	raw, err := r.ReadTensorData(name)
	if err != nil {
		return Tensor{}, err
	}

	values := make([]float64, info.NumElements())
	switch info.DType {
	case F32:
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	case F64:
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	default:
		return Tensor{}, fmt.Errorf("%w: tensor %q has dtype %q", ErrUnsupportedDType, name, info.DType)
	}
	return Tensor{Shape: append([]int(nil), info.Shape...), Data: values}, nil
}

// ModelConfig decodes the layer description stored in the metadata.
func (r *Reader) ModelConfig() (*ModelConfig, error) {
	raw, ok := r.header.Metadata[MetaModelConfig]
	if !ok {
		return nil, ErrNoModelConfig
	}
	return ParseModelConfig([]byte(raw))
}

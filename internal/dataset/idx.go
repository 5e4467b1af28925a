package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/seqnet/internal/parallel"
	"github.com/born-ml/seqnet/internal/tensor"
)

// IDX magic numbers.
const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801
)

// LoadIDX loads an image/label pair in IDX format (the MNIST layout).
//
// Images become (rows, cols, 1) volumes scaled to [0, 1]; labels become
// one-hot vectors of length classes. maxSamples limits the number of samples
// read; 0 reads all of them.
func LoadIDX(imagesPath, labelsPath string, classes, maxSamples int) (*Set, error) {
	if classes <= 0 {
		return nil, fmt.Errorf("invalid class count %d", classes)
	}
	images, rows, cols, err := readIDXImages(imagesPath, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imagesPath, err)
	}
	labels, err := readIDXLabels(labelsPath, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labelsPath, err)
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("%w: %d images, %d labels", ErrSampleCount, len(images), len(labels))
	}

	for i, l := range labels {
		if int(l) >= classes {
			return nil, fmt.Errorf("%s: label %d of sample %d out of range [0, %d)", labelsPath, l, i, classes)
		}
	}

	s := &Set{
		inputs:  make([]*tensor.Tensor, len(images)),
		targets: make([]*tensor.Tensor, len(images)),
	}
	shape := tensor.Shape{rows, cols, 1}
	parallel.For(len(images), func(i int) {
		in := tensor.New(shape)
		for j, px := range images[i] {
			in.Data()[j] = float64(px) / 255
		}
		s.inputs[i] = in

		out := tensor.New(tensor.Shape{classes})
		out.Data()[labels[i]] = 1
		s.targets[i] = out
	}, parallel.DefaultConfig())
	return s, nil
}

// readIDXImages reads an IDX image file.
//
//	magic number: 0x00000803
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes
func readIDXImages(path string, limit int) (images [][]byte, rows, cols int, err error) {
	//nolint:gosec // G304: dataset paths come from the user.
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer file.Close()
	r := bufio.NewReader(file)

	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, fmt.Errorf("invalid magic number: got %#x, want %#x", header[0], idxImagesMagic)
	}

	n := clampCount(int(header[1]), limit)
	rows, cols = int(header[2]), int(header[3])
	if rows == 0 || cols == 0 {
		return nil, 0, 0, fmt.Errorf("invalid image size %dx%d", rows, cols)
	}
	payload, err := payloadSize(file, 16)
	if err != nil {
		return nil, 0, 0, err
	}
	if int64(rows) > payload/int64(cols) || int64(n) > payload/(int64(rows)*int64(cols)) {
		return nil, 0, 0, fmt.Errorf("header declares %d images of %dx%d, file holds %d bytes", n, rows, cols, payload)
	}
	images = make([][]byte, n)
	for i := range images {
		images[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read image %d: %w", i, err)
		}
	}
	return images, rows, cols, nil
}

// readIDXLabels reads an IDX label file.
//
//	magic number: 0x00000801
//	number of labels: 4 bytes
//	label data: unsigned bytes
func readIDXLabels(path string, limit int) ([]byte, error) {
	//nolint:gosec // G304: dataset paths come from the user.
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	r := bufio.NewReader(file)

	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("invalid magic number: got %#x, want %#x", header[0], idxLabelsMagic)
	}

	n := clampCount(int(header[1]), limit)
	payload, err := payloadSize(file, 8)
	if err != nil {
		return nil, err
	}
	if int64(n) > payload {
		return nil, fmt.Errorf("header declares %d labels, file holds %d bytes", n, payload)
	}
	labels := make([]byte, n)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

func clampCount(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// payloadSize returns the number of bytes after an IDX header of the given
// length.
func payloadSize(file *os.File, header int64) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return max(info.Size()-header, 0), nil
}

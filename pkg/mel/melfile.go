package mel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/x448/float16"
)

// .mel file layout (little endian):
//
//	magic   [4]byte  "MELF"
//	version uint16   currently 1
//	bands   uint32
//	frames  uint32
//	values  bands*frames uint16, IEEE 754 half precision, band-major
//
// Half precision keeps conditioning files small; log10 magnitudes sit well
// inside the representable range.

var melMagic = [4]byte{'M', 'E', 'L', 'F'}

const melFileVersion = 1

// WriteFile persists a spectrogram in the compact .mel format.
func WriteFile(path string, s *Spectrogram) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mel: create %q: %w", path, err)
	}
	w := bufio.NewWriter(f)

	header := struct {
		Magic   [4]byte
		Version uint16
		Bands   uint32
		Frames  uint32
	}{melMagic, melFileVersion, uint32(s.Bands()), uint32(s.Frames())}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		f.Close()
		return fmt.Errorf("mel: write %q: %w", path, err)
	}
	for _, row := range s.Data {
		for _, v := range row {
			bits := float16.Fromfloat32(float32(v)).Bits()
			if err := binary.Write(w, binary.LittleEndian, bits); err != nil {
				f.Close()
				return fmt.Errorf("mel: write %q: %w", path, err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("mel: flush %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("mel: close %q: %w", path, err)
	}
	return nil
}

// ReadFile loads a spectrogram previously written by [WriteFile].
func ReadFile(path string) (*Spectrogram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mel: open %q: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var header struct {
		Magic   [4]byte
		Version uint16
		Bands   uint32
		Frames  uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("mel: read header of %q: %w", path, err)
	}
	if header.Magic != melMagic {
		return nil, fmt.Errorf("mel: %q is not a mel spectrogram file", path)
	}
	if header.Version != melFileVersion {
		return nil, fmt.Errorf("mel: %q has unsupported version %d", path, header.Version)
	}

	data := make([][]float64, header.Bands)
	buf := make([]uint16, header.Frames)
	for m := range data {
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("mel: read band %d of %q: %w", m, path, err)
		}
		row := make([]float64, header.Frames)
		for t, bits := range buf {
			row[t] = float64(float16.Frombits(bits).Float32())
		}
		data[m] = row
	}
	return &Spectrogram{Data: data}, nil
}

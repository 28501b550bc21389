//go:build unix

package reader

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mmapSource is a read-only memory mapping of a whole file.
type mmapSource struct {
	data []byte
}

func (m *mmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mmapSource) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// openSource maps the file into memory. Empty files and filesystems that
// refuse mmap fall back to reading through the *os.File.
func openSource(f *os.File, size int64) (io.ReaderAt, io.Closer, error) {
	if size <= 0 || int64(int(size)) != size {
		return f, f, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return f, f, nil
	}
	// The mapping stays valid after the descriptor is closed.
	if err := f.Close(); err != nil {
		unix.Munmap(data)
		return nil, nil, err
	}
	m := &mmapSource{data: data}
	return m, m, nil
}

package filters

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"
)

// LZWDecode decompresses LZW data. EarlyChange (default 1) selects whether
// the code width grows one code early, as most PDF producers do.
func LZWDecode(data []byte, params Params) ([]byte, error) {
	early := getIntParam(params, "EarlyChange", 1) == 1

	rc := lzw.NewReader(bytes.NewReader(data), early)
	defer rc.Close()

	out, err := io.ReadAll(rc)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("lzw decompression failed: %w", err)
	}
	return unpredict(out, params)
}

// LZWEncode compresses data with early change enabled.
func LZWEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	wc := lzw.NewWriter(&buf, true)
	if _, err := wc.Write(data); err != nil {
		return nil, err
	}
	if err := wc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package index

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/jward/rootpath"
)

// FileReader reads ranges straight from files on disk. Columns are byte
// offsets within a line; out-of-range positions are clamped.
type FileReader struct{}

var _ rootpath.RangeReader = FileReader{}

// ReadRange returns the text between r.Start and r.End, end exclusive.
func (FileReader) ReadRange(ctx context.Context, filepath string, r rootpath.Range) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := os.ReadFile(filepath)
	if err != nil {
		return "", fmt.Errorf("read range: %w", err)
	}
	start := offset(content, r.Start)
	end := offset(content, r.End)
	if end < start {
		return "", nil
	}
	return string(content[start:end]), nil
}

// offset converts a position to a byte offset into content.
func offset(content []byte, pos rootpath.Position) int {
	if pos.Line < 0 {
		return 0
	}
	lineStart := 0
	for i := 0; i < pos.Line; i++ {
		nl := bytes.IndexByte(content[lineStart:], '\n')
		if nl < 0 {
			return len(content)
		}
		lineStart += nl + 1
	}
	lineEnd := len(content)
	if nl := bytes.IndexByte(content[lineStart:], '\n'); nl >= 0 {
		lineEnd = lineStart + nl
	}
	return min(lineStart+max(pos.Character, 0), lineEnd)
}

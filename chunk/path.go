package chunk

import (
	"github.com/justapithecus/asechunk/iox"
	"github.com/justapithecus/asechunk/types"
)

// Path is the 0x2017 path chunk. The format reserves it and never
// defined its contents, so the payload is kept as raw bytes.
type Path struct {
	Data []byte
}

// Tag implements Payload.
func (*Path) Tag() Tag { return TagPath }

func decodePath(c *iox.Cursor, size uint32) (*Path, error) {
	n, err := trailingLen(size, 0)
	if err != nil {
		return nil, err
	}
	data, err := c.Bytes(n)
	if err != nil {
		return nil, err
	}
	return &Path{Data: data}, nil
}

func (p *Path) encode(w *iox.Writer, _ *types.Header) {
	w.Bytes(p.Data)
}

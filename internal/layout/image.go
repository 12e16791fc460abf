package layout

import (
	"encoding/base64"

	"github.com/nugget/sdui-termfw/internal/platform"
)

// imageOwned is the owned pixel buffer + descriptor an image node frees
// on deletion.
type imageOwned struct {
	arena platform.Arena
	buf   []byte
}

func (i *imageOwned) Release() {
	if i.arena != nil && i.buf != nil {
		i.arena.Free(i.buf)
	}
	i.buf = nil
}

// decodeImage decodes a Base64 RGB565 payload into a buffer allocated
// from arena (PSRAM in the real device). On allocation failure the
// widget is still constructed but without pixels — a resource-
// exhaustion degrade, not a hard error.
func decodeImage(arena platform.Arena, encoded string, w, h int) ([]byte, *imageOwned, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, err
	}
	buf, err := arena.Alloc(len(raw))
	if err != nil {
		return nil, nil, err
	}
	copy(buf, raw)
	return buf, &imageOwned{arena: arena, buf: buf}, nil
}

package llm

import (
	"fmt"
	"strings"
)

// splitDataURL returns the media type and base64 payload of a data URL.
func splitDataURL(u string) (mediaType, data string, err error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", "", fmt.Errorf("image is not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", "", fmt.Errorf("image data URL is not base64")
	}
	return strings.TrimSuffix(meta, ";base64"), payload, nil
}

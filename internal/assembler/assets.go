package assembler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidImage = errors.New("invalid image payload")

// DecodeImage accepts a data URL or bare base64 and returns the raw bytes and
// content type. An empty payload yields nil bytes and no error.
func DecodeImage(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", nil
	}

	contentType := "image/png"
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("%w: malformed data url", ErrInvalidImage)
		}
		meta := payload[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("%w: data url is not base64 encoded", ErrInvalidImage)
		}
		if mime := strings.TrimSuffix(meta, ";base64"); mime != "" {
			contentType = mime
		}
		payload = payload[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return data, contentType, nil
}

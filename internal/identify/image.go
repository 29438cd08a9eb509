package identify

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

const (
	// DefaultMaxImageBytes limits the decoded image size.
	// Keep in sync with the upload hint in the web UI.
	DefaultMaxImageBytes = 5 * 1024 * 1024 // 5MB

	// DefaultMIMEType is sent when neither the data URL nor the bytes say otherwise.
	DefaultMIMEType = "image/jpeg"

	dataURLMarker = "base64,"
)

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeImage decodes a bare base64 payload or a data URL into an Image.
// maxBytes <= 0 uses DefaultMaxImageBytes.
func DecodeImage(raw string, maxBytes int) (core.Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	payload := raw
	declared := ""
	if before, after, ok := strings.Cut(raw, dataURLMarker); ok {
		payload = after
		declared = declaredMIMEType(before)
	}
	payload = stripSpace(payload)
	if payload == "" {
		return core.Image{}, core.ErrValidation(core.CodeInvalidImage, core.MsgInvalidBase64)
	}

	// Reject obviously oversized payloads before allocating the decode buffer.
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+3 {
		return core.Image{}, tooLarge(maxBytes)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return core.Image{}, core.ErrValidation(core.CodeInvalidImage, core.MsgInvalidBase64).WithCause(err)
	}
	if len(data) == 0 {
		return core.Image{}, core.ErrValidation(core.CodeInvalidImage, core.MsgInvalidBase64)
	}
	if len(data) > maxBytes {
		return core.Image{}, tooLarge(maxBytes)
	}

	sum := sha256.Sum256(data)
	return core.Image{
		Data:     data,
		MIMEType: resolveMIMEType(declared, data),
		Hash:     hex.EncodeToString(sum[:]),
	}, nil
}

// TooLargeMessage returns the user-facing size limit message.
func TooLargeMessage(maxBytes int) string {
	const mb = 1024 * 1024
	if maxBytes > 0 && maxBytes%mb == 0 {
		return fmt.Sprintf("Image size should be less than %dMB", maxBytes/mb)
	}
	return fmt.Sprintf("Image size should be less than %d bytes", maxBytes)
}

func tooLarge(maxBytes int) *core.DomainError {
	return core.ErrTooLarge(core.CodeImageTooLarge, TooLargeMessage(maxBytes)).
		WithDetail("max_bytes", maxBytes)
}

// declaredMIMEType reads "data:image/png;" style prefixes.
func declaredMIMEType(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if !strings.HasPrefix(prefix, "data:") {
		return ""
	}
	mediaType, _, _ := strings.Cut(strings.TrimPrefix(prefix, "data:"), ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func resolveMIMEType(declared string, data []byte) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return DefaultMIMEType
}

func decodeBase64(payload string) ([]byte, error) {
	var firstErr error
	for _, enc := range base64Encodings {
		data, err := enc.DecodeString(payload)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func stripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

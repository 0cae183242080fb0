package payload

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// legacyJSON reads and writes the first-generation payload, a JSON document
// carrying the photo as a data: URL.
type legacyJSON struct{}

type legacyDocument struct {
	V            string `json:"v"`
	Quote        string `json:"quote"`
	CreatedAt    string `json:"createdAt"`
	PhotoDataURL string `json:"photoDataUrl"`
}

func (legacyJSON) Encode(c Contents) ([]byte, error) {
	if y := c.Timestamp.UTC().Year(); y < 0 || y > 9999 {
		return nil, fmt.Errorf("%w: year %d does not fit RFC 3339", ErrInvalidContents, y)
	}
	mime := c.ImageMIME
	if mime == "" {
		mime = "application/octet-stream"
	}
	return json.Marshal(legacyDocument{
		V:            "v1",
		Quote:        c.Note,
		CreatedAt:    c.Timestamp.UTC().Format(time.RFC3339Nano),
		PhotoDataURL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(c.Image),
	})
}

func (legacyJSON) Decode(b []byte) (Contents, error) {
	var doc legacyDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return Contents{}, decodeErr("legacy json: %v", err)
	}
	if doc.V != "v1" {
		return Contents{}, decodeErr("legacy version %q", doc.V)
	}

	ts, err := time.Parse(time.RFC3339Nano, doc.CreatedAt)
	if err != nil {
		return Contents{}, decodeErr("legacy createdAt: %v", err)
	}

	mime, image, err := parseDataURL(doc.PhotoDataURL)
	if err != nil {
		return Contents{}, err
	}

	return Contents{Note: doc.Quote, Timestamp: ts.UTC(), Image: image, ImageMIME: mime}, nil
}

func parseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, decodeErr("photo is not a data url")
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, decodeErr("data url has no payload")
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, decodeErr("data url is not base64")
	}
	image, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, decodeErr("data url base64: %v", err)
	}
	return mime, image, nil
}

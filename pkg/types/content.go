package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content part kinds. The image_url kind deliberately carries every media
// reference (images and videos); see MediaURL.
const (
	PartText  = "text"
	PartMedia = "image_url"
)

// ContentPart is a closed tagged variant: a text fragment or a media
// reference. Anything else fails validation at the transport boundary.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *MediaURL `json:"image_url,omitempty"`
}

// Validate rejects unknown part kinds and media parts without a reference.
func (p ContentPart) Validate() error {
	switch p.Type {
	case PartText:
		return nil
	case PartMedia:
		if p.ImageURL == nil || strings.TrimSpace(p.ImageURL.URL) == "" {
			return fmt.Errorf("image_url part has no url")
		}
		return nil
	default:
		return fmt.Errorf("unknown content part type %q", p.Type)
	}
}

// MediaURL holds a media reference: a local path, a data URI, or a remote
// URL. Clients send either {"url": "..."} or a bare string; both forms are
// accepted.
type MediaURL struct {
	URL string `json:"url"`
}

func (m *MediaURL) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		m.URL = s
		return nil
	}
	type alias MediaURL
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*m = MediaURL(a)
	return nil
}

// MessageContent is either a plain string or a sequence of typed parts.
type MessageContent struct {
	// Text is set when the wire form was a plain string.
	Text string
	// Parts is set when the wire form was an array of parts.
	Parts []ContentPart
	// IsParts distinguishes an empty string from an empty part list.
	IsParts bool
}

func (c *MessageContent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.Text = s
		c.Parts = nil
		c.IsParts = false
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("content must be a string or an array of parts")
	}
	c.Text = ""
	c.Parts = parts
	c.IsParts = true
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsParts {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// Validate checks every part of part-form content.
func (c MessageContent) Validate() error {
	if !c.IsParts {
		return nil
	}
	for i, p := range c.Parts {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}
	return nil
}

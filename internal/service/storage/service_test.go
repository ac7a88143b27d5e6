package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitDataURI(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contentType string
		encoded     string
	}{
		{
			name:        "png data uri",
			input:       "data:image/png;base64,iVBORw0KGgo=",
			contentType: "image/png",
			encoded:     "iVBORw0KGgo=",
		},
		{
			name:        "jpeg data uri",
			input:       "data:image/jpeg;base64,/9j/4AAQ",
			contentType: "image/jpeg",
			encoded:     "/9j/4AAQ",
		},
		{
			name:        "bare base64 defaults to png",
			input:       "iVBORw0KGgo=",
			contentType: "image/png",
			encoded:     "iVBORw0KGgo=",
		},
		{
			name:        "data prefix without comma",
			input:       "data:image/png;base64",
			contentType: "image/png",
			encoded:     "data:image/png;base64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contentType, encoded := splitDataURI(tt.input)
			assert.Equal(t, tt.contentType, contentType)
			assert.Equal(t, tt.encoded, encoded)
		})
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	assert.Equal(t, ".gif", extensionFor("image/gif"))
	assert.Equal(t, ".webp", extensionFor("image/webp"))
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".png", extensionFor("application/octet-stream"))
}

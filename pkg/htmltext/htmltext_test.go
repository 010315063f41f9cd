package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain name", "plain name"},
		{"<b>bold</b> move", "bold move"},
		{"<script>alert(1)</script>movie night", "movie night"},
		{"tom &amp; jerry", "tom & jerry"},
		{"<img src=x onerror=alert(1)>", ""},
		{"a <!-- hidden --> b", "a  b"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StripTags(tt.in), "input %q", tt.in)
	}
}

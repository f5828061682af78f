/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package killerpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlyph(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain name", in: "Alice", want: DefaultGlyph},
		{name: "empty", in: "", want: DefaultGlyph},
		{name: "leading emoji", in: "🎱 Bob", want: "🎱"},
		{name: "emoji without space", in: "🔥Carol", want: "🔥"},
		{name: "trailing emoji only", in: "Dave 😎", want: DefaultGlyph},
		{name: "leading space", in: " 😎 Eve", want: DefaultGlyph},
		{name: "skin tone dropped", in: "👍🏽 Frank", want: "👍"},
		{name: "flag keeps first indicator", in: "🇬🇧 Grace", want: "🇬"},
		{name: "digit counts", in: "8ball", want: "8"},
		{name: "hash counts", in: "#1 Heidi", want: "#"},
		{name: "bmp symbol", in: "⚡ Ivan", want: "⚡"},
		{name: "copyright sign", in: "© Judy", want: "©"},
		{name: "latin letter", in: "Émile", want: DefaultGlyph},
		{name: "invalid utf8", in: "\xffMallory", want: DefaultGlyph},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Glyph(tt.in))
		})
	}
}

package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "HeLLo", "hello"},
		{"strips diacritics", "héllo wörld", "hello world"},
		{"maps lookalikes outside allowed set", "f@ck th!s", "fack this"},
		{"digits stay digits", "h3ll0 us3r1", "h3ll0 us3r1"},
		{"keeps dots and underscores", "some._name", "some._name"},
		{"collapses whitespace", "  a \t b \n c  ", "a b c"},
		{"punctuation becomes space", "a,b;c", "a b c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HeLLo WoRLD", "héllo", "f@ck", "  spaced   out  ", "user_name.42",
		"ÅngstroM", "çàfé", "a!b$c@d",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize should be idempotent for %q", in)
	}
}

func TestContainsLinks(t *testing.T) {
	assert.True(t, ContainsLinks("visit http://example.com now"))
	assert.True(t, ContainsLinks("see https://a.b/c"))
	assert.True(t, ContainsLinks("go to www.example.com"))
	assert.True(t, ContainsLinks("mailto:someone@example.com"))
	assert.True(t, ContainsLinks("ftp://files.example.net"))
	assert.True(t, ContainsLinks("check example.io for details"))
	assert.False(t, ContainsLinks("just a plain message"))
	assert.False(t, ContainsLinks("i like dots. and more dots."))
}

func TestViolatesPolicy(t *testing.T) {
	assert.True(t, ViolatesPolicy("you are stupid"))
	assert.True(t, ViolatesPolicy("YOU ARE STUPID"))
	// lookalike collapse happens before matching: "!" -> "i"
	assert.True(t, ViolatesPolicy("stup!d"))
	assert.False(t, ViolatesPolicy("have a lovely day"))
}

func TestValidateUsername(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := ValidateUsername("some_user.42")
		require.NoError(t, err)
		assert.Equal(t, "some_user.42", got)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ValidateUsername("ab")
		require.Error(t, err)
		v, ok := AsViolation(err)
		require.True(t, ok)
		assert.Equal(t, KindInvalidUsername, v.Kind)
	})

	t.Run("bad characters", func(t *testing.T) {
		_, err := ValidateUsername("Spaces Here")
		require.Error(t, err)
		v, _ := AsViolation(err)
		assert.Equal(t, KindInvalidUsername, v.Kind)
	})

	t.Run("edge chars must be alphanumeric", func(t *testing.T) {
		_, err := ValidateUsername("_abc")
		require.Error(t, err)
		_, err = ValidateUsername("abc.")
		require.Error(t, err)
	})

	t.Run("reserved even when format is valid", func(t *testing.T) {
		_, err := ValidateUsername("admin")
		require.Error(t, err)
		v, ok := AsViolation(err)
		require.True(t, ok)
		assert.Equal(t, KindReservedUsername, v.Kind)
	})
}

func TestValidateMessage(t *testing.T) {
	t.Run("boundary length accepted", func(t *testing.T) {
		got, err := ValidateMessage("hi")
		require.NoError(t, err)
		assert.Equal(t, "hi", got)
	})

	t.Run("max length accepted", func(t *testing.T) {
		msg := strings.Repeat("a", 500)
		got, err := ValidateMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	})

	t.Run("single char rejected", func(t *testing.T) {
		_, err := ValidateMessage("h")
		v, ok := AsViolation(err)
		require.True(t, ok)
		assert.Equal(t, KindTooShort, v.Kind)
	})

	t.Run("whitespace only is too short, not too long", func(t *testing.T) {
		_, err := ValidateMessage(strings.Repeat(" ", 600))
		v, ok := AsViolation(err)
		require.True(t, ok)
		assert.Equal(t, KindTooShort, v.Kind)
	})

	t.Run("over limit rejected", func(t *testing.T) {
		_, err := ValidateMessage(strings.Repeat("a", 501))
		v, ok := AsViolation(err)
		require.True(t, ok)
		assert.Equal(t, KindTooLong, v.Kind)
	})

	t.Run("policy violation", func(t *testing.T) {
		_, err := ValidateMessage("you are stupid")
		v, ok := AsViolation(err)
		require.True(t, ok)
		assert.Equal(t, KindPolicyViolation, v.Kind)
	})

	t.Run("link rejected", func(t *testing.T) {
		_, err := ValidateMessage("visit http://example.com now")
		v, ok := AsViolation(err)
		require.True(t, ok)
		assert.Equal(t, KindContainsLink, v.Kind)
	})

	t.Run("trims before validating", func(t *testing.T) {
		got, err := ValidateMessage("  hello there  ")
		require.NoError(t, err)
		assert.Equal(t, "hello there", got)
	})
}

func TestMessageClientHint(t *testing.T) {
	assert.Empty(t, MessageClientHint("a perfectly fine message"))
	assert.Equal(t, "Message must be at least 2 characters.", MessageClientHint("h"))
	assert.Equal(t, "Please remove links before sending.", MessageClientHint("go to www.example.com"))
}

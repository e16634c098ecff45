package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_FramePrefix(t *testing.T) {
	assert.Equal(t, "eiffel tower", Normalize("What is the Eiffel Tower?"))
	assert.Equal(t, "beatles", Normalize("Who are the Beatles"))
	assert.Equal(t, "paris", Normalize("where is Paris"))
}

func TestNormalize_Articles(t *testing.T) {
	assert.Equal(t, "great gatsby", Normalize("The Great Gatsby"))
	assert.Equal(t, "apple", Normalize("an apple"))
	assert.Equal(t, "banana", Normalize("a banana"))
}

func TestNormalize_PunctuationAndSpacing(t *testing.T) {
	assert.Equal(t, "dont stop believin", Normalize("Don't   Stop... Believin'!"))
	assert.Equal(t, "ac dc", Normalize("AC DC"))
}

func TestNormalize_Diacritics(t *testing.T) {
	assert.Equal(t, "champs elysees", Normalize("Champs-Élysées"))
	assert.Equal(t, "gabriel garcia marquez", Normalize("Gabriel García Márquez"))
}

func TestNormalize_Blank(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("   "))
	assert.Equal(t, "", Normalize("..."))
}

func TestNormalize_FrameThenArticle(t *testing.T) {
	// Both the frame and the article strip in sequence.
	assert.Equal(t, "louvre", Normalize("What is the Louvre?"))
}

func TestHasParentheticalOr(t *testing.T) {
	assert.True(t, HasParentheticalOr("Nihon (or Nippon)"))
	assert.True(t, HasParentheticalOr("Nihon ( or Nippon)"))
	assert.False(t, HasParentheticalOr("Nihon (Nippon)"))
	assert.False(t, HasParentheticalOr("Nihon"))
}

func TestExtractAlternates_Parenthetical(t *testing.T) {
	alts := ExtractAlternates("Nihon (or Nippon)", nil)
	assert.Equal(t, []string{"Nihon", "Nippon"}, alts)
}

func TestExtractAlternates_BaseFirst(t *testing.T) {
	alts := ExtractAlternates("Mark Twain (or Samuel Clemens)", []string{"Sam Clemens"})
	assert.Equal(t, "Mark Twain", alts[0])
	assert.Contains(t, alts, "Samuel Clemens")
	assert.Contains(t, alts, "Sam Clemens")
}

func TestExtractAlternates_NoParenthetical(t *testing.T) {
	alts := ExtractAlternates("Abraham Lincoln", nil)
	assert.Equal(t, []string{"Abraham Lincoln"}, alts)
}

func TestTokenOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, TokenOverlap("abraham lincoln", "abraham lincoln"), 1e-9)
	assert.InDelta(t, 0.5, TokenOverlap("lincoln", "abraham lincoln"), 1e-9)
	assert.Zero(t, TokenOverlap("", "abraham lincoln"))
	assert.Zero(t, TokenOverlap("grant", "lincoln"))
}

func TestLooksLikePersonName(t *testing.T) {
	assert.True(t, LooksLikePersonName("Abraham Lincoln"))
	assert.True(t, LooksLikePersonName("Gabriel García Márquez"))
	assert.False(t, LooksLikePersonName("lincoln"))
	assert.False(t, LooksLikePersonName("Route 66"))
	assert.False(t, LooksLikePersonName("Mississippi"))
}

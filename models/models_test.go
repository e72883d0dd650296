package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCandidate_ResolvesRelativeAgainstSource(t *testing.T) {
	c, err := NewCandidate(RawMedia{URL: "/img/a.jpg", SourceURL: "https://example.com/gallery/1"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/img/a.jpg", c.URL)
	assert.Equal(t, MediaKindImage, c.Kind)

	c, err = NewCandidate(RawMedia{URL: "//cdn.example.com/v.mp4", SourceURL: "http://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.example.com/v.mp4", c.URL)
	assert.Equal(t, MediaKindVideo, c.Kind)
}

func TestNewCandidate_RejectsEmptyAndUnresolvable(t *testing.T) {
	_, err := NewCandidate(RawMedia{URL: "  "})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = NewCandidate(RawMedia{URL: "a.jpg"})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestSetCanonicalURL_OnlyOnce(t *testing.T) {
	c, err := NewCandidate(RawMedia{URL: "https://example.com/a.jpg"})
	require.NoError(t, err)
	assert.False(t, c.HasCanonical())

	require.NoError(t, c.SetCanonicalURL("https://example.com/a.jpg"))
	assert.ErrorIs(t, c.SetCanonicalURL("https://example.com/b.jpg"), ErrCanonicalAlreadySet)
	assert.Equal(t, "https://example.com/a.jpg", c.CanonicalURL())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorKindEmpty},
		{"capability", Capability(StrategyAPI, "no credentials"), ErrorKindCapability},
		{"wrapped capability", fmt.Errorf("outer: %w", ErrCapabilityUnavailable), ErrorKindCapability},
		{"malformed", Malformed(StrategyStatic, "bad"), ErrorKindMalformed},
		{"deadline", context.DeadlineExceeded, ErrorKindTransient},
		{"unknown", errors.New("connection reset"), ErrorKindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStrategyError_IsSentinel(t *testing.T) {
	err := Transient(StrategyRendered, errors.New("navigation failed"))
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestCursor_ScopedToStrategy(t *testing.T) {
	c := EncodeCursor(StrategyAPI, "t3_abc")
	assert.Equal(t, "t3_abc", c.PositionFor(StrategyAPI))
	assert.Empty(t, c.PositionFor(StrategyStatic))
	assert.Empty(t, EncodeCursor(StrategyAPI, ""))

	_, _, err := DecodeCursor(Cursor("!!not-base64"))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestSiteProfile_Order(t *testing.T) {
	assert.Equal(t, DefaultStrategyOrder, SiteProfile{}.Order())

	p := SiteProfile{StrategyOrder: []StrategyKind{StrategyStatic, StrategyStatic, StrategyAPI}}
	assert.Equal(t, []StrategyKind{StrategyStatic, StrategyAPI}, p.Order())
}

func TestHostMatches(t *testing.T) {
	assert.True(t, HostMatches("www.Example.com", "example.com"))
	assert.True(t, HostMatches("img.example.com", "example.com"))
	assert.False(t, HostMatches("badexample.com", "example.com"))
	assert.False(t, HostMatches("example.com", ""))
}

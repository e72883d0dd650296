package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_scrooper/models"
)

func TestSelectDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		fallback   string
		want       string
	}{
		{"explicit widths", "a.jpg 100w, b.jpg 500w, c.jpg 250w", "src.jpg", "b.jpg"},
		{"densities", "a.jpg 1x, b.jpg 2x", "src.jpg", "b.jpg"},
		{"width beats density", "a.jpg 3x, b.jpg 1600w", "", "b.jpg"},
		{"tie keeps first", "a.jpg 800w, b.jpg 800w", "", "a.jpg"},
		{"density tie with width", "a.jpg 1000w, b.jpg 2x", "", "a.jpg"},
		{"empty falls back", "", "src.jpg", "src.jpg"},
		{"garbage falls back", " , ,, ", "src.jpg", "src.jpg"},
		{"bare entries prefer src", "a.jpg, b.jpg", "src.jpg", "src.jpg"},
		{"bare entries without src", "a.jpg, b.jpg", "", "a.jpg"},
		{"commas inside url", "https://x.com/w_200,h_100/a.jpg 200w, https://x.com/w_900,h_600/a.jpg 900w", "", "https://x.com/w_900,h_600/a.jpg"},
		{"fractional density", "a.jpg 1.5x, b.jpg 700w", "", "b.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectDescriptor(tt.descriptor, tt.fallback))
		})
	}
}

func TestParseSrcset_Hints(t *testing.T) {
	entries := ParseSrcset("a.jpg 640w, b.jpg 2x, c.jpg")
	require.Len(t, entries, 3)
	assert.Equal(t, 640, entries[0].EffectiveWidth())
	assert.Equal(t, 2*BaseWidth, entries[1].EffectiveWidth())
	assert.Equal(t, 0, entries[2].EffectiveWidth())
}

func TestCanonicalize_UniversalNormalization(t *testing.T) {
	c := NewWithGroups()

	got, err := c.Canonicalize("HTTPS://Example.COM:443/Path/Img.JPG?w=200&h=100#frag", "", "", models.SiteProfile{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/Path/Img.JPG", got)

	got, err = c.Canonicalize("http://example.com:8080/a.jpg", "", "", models.SiteProfile{})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:8080/a.jpg", got)

	got, err = c.Canonicalize("https://example.com/a.jpg?id=7&size=s", "", "", models.SiteProfile{IdentityQueryKeys: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.jpg?id=7", got)
}

func TestCanonicalize_DescriptorResolvedAgainstPage(t *testing.T) {
	c := NewWithGroups()
	got, err := c.Canonicalize("https://example.com/thumbs/a.jpg", "photos/a-600.jpg 600w, photos/a-1200.jpg 1200w",
		"https://example.com/gallery/index.html", models.SiteProfile{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/gallery/photos/a-1200.jpg", got)

	got, err = c.Canonicalize("https://example.com/thumbs/a.jpg", "/full/a.jpg 2x",
		"https://example.com/gallery/index.html", models.SiteProfile{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/full/a.jpg", got)
}

func TestCanonicalize_DescriptorWithoutPageUsesRaw(t *testing.T) {
	c := NewWithGroups()
	got, err := c.Canonicalize("https://example.com/img/small.jpg", "small.jpg 1x, large.jpg 2x", "", models.SiteProfile{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/img/large.jpg", got)
}

func TestCanonicalize_Malformed(t *testing.T) {
	c := New()
	for _, raw := range []string{"", "data:image/png;base64,AAAA", "javascript:void(0)", "/relative.jpg"} {
		_, err := c.Canonicalize(raw, "", "", models.SiteProfile{})
		assert.ErrorIs(t, err, models.ErrMalformedInput, raw)
	}
}

func TestCanonicalize_BuiltinSources(t *testing.T) {
	c := New()
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"flickr small", "https://live.staticflickr.com/65535/5123_abcd12_m.jpg", "https://live.staticflickr.com/65535/5123_abcd12_b.jpg"},
		{"flickr no suffix", "https://live.staticflickr.com/65535/5123_abcd12.jpg", "https://live.staticflickr.com/65535/5123_abcd12_b.jpg"},
		{"behance module", "https://mir-s3-cdn-cf.behance.net/project_modules/max_1200/abc.jpg", "https://mir-s3-cdn-cf.behance.net/project_modules/source/abc.jpg"},
		{"behance cover", "https://mir-s3-cdn-cf.behance.net/projects/404/abc.jpg", "https://mir-s3-cdn-cf.behance.net/projects/source/abc.jpg"},
		{"deviantart", "https://images-wixmp-1.wixmp.com/intermediary/f/abc/art-pre.jpg?token=xyz&foo=1", "https://images-wixmp-1.wixmp.com/f/abc/art-orig.jpg?token=xyz"},
		{"artstation", "https://cdna.artstation.com/p/assets/images/images/001/medium/a.jpg", "https://cdna.artstation.com/p/assets/images/images/001/large/a.jpg"},
		{"pinterest", "https://i.pinimg.com/236x/aa/bb/cc.jpg", "https://i.pinimg.com/originals/aa/bb/cc.jpg"},
		{"wix", "https://static.wixstatic.com/media/a.jpg/v1/fill/w_800,h_600,q_80,enc_avif,quality_auto/a.jpg", "https://static.wixstatic.com/media/a.jpg/v1/fill/w_4000,h_5000,q_95,enc_auto/a.jpg"},
		{"modelmayhem", "https://photos.modelmayhem.com/photos/1/2/abc_m.jpg", "https://photos.modelmayhem.com/photos/1/2/abc.jpg"},
		{"google arts", "https://lh3.ggpht.com/abcDEF=s512-c", "https://lh3.ggpht.com/abcDEF=w3000-h3000"},
		{"reddit preview", "https://preview.redd.it/abc.jpg?width=640&auto=webp&s=123", "https://i.redd.it/abc.jpg"},
		{"twitter", "https://pbs.twimg.com/media/Abc?format=jpg&name=small", "https://pbs.twimg.com/media/Abc?format=jpg&name=orig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Canonicalize(tt.raw, "", "", models.SiteProfile{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalize_Reject(t *testing.T) {
	c := New()
	for _, raw := range []string{
		"https://www.bellazon.com/main/uploads/monthly_2020/a.thumb.jpg.123.jpg",
		"https://encrypted-tbn0.gstatic.com/images?q=tbn:abc",
	} {
		_, err := c.Canonicalize(raw, "", "", models.SiteProfile{})
		assert.ErrorIs(t, err, ErrRejected, raw)
	}
}

func TestCanonicalize_ProfileGroupsAfterBuiltins(t *testing.T) {
	c := New()
	profile := models.SiteProfile{
		RuleGroups: []models.RuleGroup{
			{Name: "thumbs", Hosts: []string{"example.com"}, Rules: []models.Rule{Regex("thumb", `/thumb/`, "/full/")}},
			{Name: "quality", Hosts: []string{"example.com"}, Rules: []models.Rule{Regex("quality", `_q\d+\.`, "_q100.")}},
			{Name: "other-host", Hosts: []string{"other.org"}, Rules: []models.Rule{Reject("all", `.`)}},
		},
	}
	got, err := c.Canonicalize("https://example.com/thumb/a_q40.jpg", "", "", profile)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/full/a_q100.jpg", got)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	c := New()
	inputs := []string{
		"HTTPS://Example.COM:443/Path/Img.JPG?w=200#frag",
		"https://live.staticflickr.com/65535/5123_abcd12_q.png",
		"https://mir-s3-cdn-cf.behance.net/project_modules/disp/abc.jpg",
		"https://images-wixmp-1.wixmp.com/intermediary/f/abc/art-250p.jpg?token=xyz",
		"https://static.wixstatic.com/media/a.jpg/v1/fill/w_800,h_600,q_80,enc_webp/a.jpg",
		"https://photos.modelmayhem.com/photos/1/2/abc_m_t.jpg?x=1",
		"https://lh3.googleusercontent.com/abc=w1200-h800-no",
		"https://preview.redd.it/abc.jpg?width=640",
		"https://pbs.twimg.com/media/Abc?name=900x900&format=png",
		"https://i.pinimg.com/564x/aa/bb/cc.jpg",
		"http://example.com",
	}
	for _, raw := range inputs {
		once, err := c.Canonicalize(raw, "", "", models.SiteProfile{})
		require.NoError(t, err, raw)
		twice, err := c.Canonicalize(once, "", "", models.SiteProfile{})
		require.NoError(t, err, raw)
		assert.Equal(t, once, twice, raw)
	}
}

func TestSetQueryRule_NoopWhenAbsent(t *testing.T) {
	r := SetQuery("n", "name", "orig")
	out, outcome := r.Apply("https://pbs.twimg.com/media/Abc.jpg")
	assert.Equal(t, models.RuleNoop, outcome)
	assert.Equal(t, "https://pbs.twimg.com/media/Abc.jpg", out)
}

package fetch

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-assistant/internal/model"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "acme.com", want: "https://acme.com/"},
		{in: "  https://acme.com/about#team ", want: "https://acme.com/about"},
		{in: "HTTP://acme.com", want: "http://acme.com/"},
		{in: "//acme.com/x", want: "https://acme.com/x"},
		{in: "", wantErr: true},
		{in: "ftp://acme.com", wantErr: true},
		{in: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDomainAndSameSite(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "acme.com", Domain("https://www.Acme.com/about"))
	assert.Equal(t, "acme.com", Domain("acme.com"))
	assert.Equal(t, "", Domain(""))

	assert.True(t, SameSite("https://www.acme.com/a", "http://acme.com/b"))
	assert.False(t, SameSite("https://acme.com", "https://globex.com"))
	assert.False(t, SameSite("", ""))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://acme.com/products/")
	got, ok := resolve(base, "../careers#open")
	require.True(t, ok)
	assert.Equal(t, "https://acme.com/careers", got)

	for _, href := range []string{"", "#top", "javascript:void(0)", "mailto:a@b.c", "tel:123", "ftp://acme.com/x"} {
		_, ok := resolve(base, href)
		assert.False(t, ok, href)
	}
}

func TestClassifyLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link   string
		anchor string
		want   model.PagePurpose
		ok     bool
	}{
		{"https://acme.com/about/leadership", "", model.PurposeLeadership, true},
		{"https://acme.com/about", "", model.PurposeLeadership, true},
		{"https://acme.com/about/news", "", model.PurposePress, true},
		{"https://acme.com/careers", "", model.PurposeCareers, true},
		{"https://acme.com/jobs", "", model.PurposeCareers, true},
		{"https://acme.com/investor-relations", "", model.PurposeInvestors, true},
		{"https://acme.com/ir", "", model.PurposeInvestors, true},
		{"https://acme.com/press-releases/2024", "", model.PurposePress, true},
		{"https://acme.com/acme-vs-globex", "", model.PurposeMentions, true},
		{"https://acme.com/integrations", "", model.PurposeMentions, true},
		{"https://acme.com/p/123", "Meet the founders", model.PurposeLeadership, true},
		{"https://acme.com/p/456", "We're hiring!", model.PurposeCareers, true},
		{"https://acme.com/pricing", "Pricing", "", false},
		{"https://acme.com/", "About", "", false},
	}
	for _, tt := range tests {
		got, ok := ClassifyLink(tt.link, tt.anchor)
		assert.Equal(t, tt.ok, ok, tt.link)
		assert.Equal(t, tt.want, got, tt.link)
	}
}

func TestDetectBlock(t *testing.T) {
	t.Parallel()

	resp := func(status int, headers map[string]string) *http.Response {
		h := http.Header{}
		for k, v := range headers {
			h.Set(k, v)
		}
		return &http.Response{StatusCode: status, Header: h}
	}

	assert.Equal(t, BlockNone, DetectBlock(nil, nil))
	assert.Equal(t, BlockCloudflare, DetectBlock(resp(403, map[string]string{"cf-ray": "1"}), nil))
	assert.Equal(t, BlockNone, DetectBlock(resp(403, nil), []byte("<html>forbidden</html>")))
	assert.Equal(t, BlockCloudflare, DetectBlock(resp(200, nil), []byte("Checking your browser before accessing")))
	assert.Equal(t, BlockCaptcha, DetectBlock(resp(200, nil), []byte(`<div class="g-recaptcha"></div>`)))
	assert.Equal(t, BlockJSShell, DetectBlock(resp(200, nil), []byte(`<div id="app"></div>`)))
	assert.Equal(t, BlockJSShell, DetectBlock(resp(200, nil), []byte(`<meta http-equiv="refresh" content="0;url=/home">`)))

	big := "<noscript>enable javascript</noscript>" + strings.Repeat("<p>content</p>", 300)
	assert.Equal(t, BlockNone, DetectBlock(resp(200, nil), []byte(big)))
}

func TestDecodeBody(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "naïve", decodeBody("text/html; charset=ISO-8859-1", []byte("na\xefve")))
	assert.Equal(t, "ok", decodeBody("text/html", []byte("\xef\xbb\xbfok")))
	assert.Equal(t, "x�y", decodeBody("text/html; charset=bogus-charset", []byte("x\xffy")))

	meta := []byte(`<meta charset="windows-1252"><p>caf` + "\xe9" + `</p>`)
	assert.Contains(t, decodeBody("", meta), "café")
}

func TestIsHTMLContent(t *testing.T) {
	t.Parallel()

	assert.True(t, isHTMLContent(""))
	assert.True(t, isHTMLContent("text/html; charset=utf-8"))
	assert.True(t, isHTMLContent("application/xhtml+xml"))
	assert.False(t, isHTMLContent("application/json"))
	assert.False(t, isHTMLContent("image/png"))
}

func TestVisibleText(t *testing.T) {
	t.Parallel()

	doc, err := ParseHTML(`<html><head><title>T</title><style>p{}</style></head><body>
<div>Hello</div><div>World</div><script>alert(1)</script><!-- note --><svg><text>icon</text></svg></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", VisibleText(doc.Find("body")))
	assert.Equal(t, "T", PageTitle(doc))
}

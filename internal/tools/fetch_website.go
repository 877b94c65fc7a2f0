package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"syscall"
	"time"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxPageChars = 20000

var blankLines = regexp.MustCompile(`\n{3,}`)

// WebFetcher downloads a page and renders its readable content as Markdown.
// It never connects to loopback, private, link-local or unspecified
// addresses, including targets reached through redirects.
type WebFetcher struct {
	httpClient *http.Client
	allowed    map[string]bool
}

func NewWebFetcher() *WebFetcher {
	f := &WebFetcher{allowed: map[string]bool{}}

	dialer := &net.Dialer{Timeout: 5 * time.Second, Control: f.checkDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	f.httpClient = &http.Client{Timeout: 10 * time.Second, Transport: transport}
	return f
}

// AllowAddresses exempts exact dial addresses ("ip:port") from the public
// address check. Tests use it to reach local servers.
func (f *WebFetcher) AllowAddresses(addrs ...string) *WebFetcher {
	for _, a := range addrs {
		f.allowed[a] = true
	}
	return f
}

type fetchWebsiteParams struct {
	URL string `json:"url" jsonschema_description:"The URL of the website to fetch."`
}

func (f *WebFetcher) Definition() Definition {
	return Func(
		"Fetch the website for the given URL and return the content as Markdown.",
		func(ctx context.Context, args fetchWebsiteParams, _ CallContext) (string, error) {
			return f.Fetch(ctx, args.URL), nil
		},
	)
}

// Fetch returns the page as Markdown or a short failure text.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) string {
	body, err := f.get(ctx, rawURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch website", "url", rawURL, "error", err)
		return "failed to fetch website"
	}
	defer body.Close()

	doc, err := html.Parse(io.LimitReader(body, 5<<20))
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse website", "url", rawURL, "error", err)
		return "failed to parse website"
	}

	var b strings.Builder
	renderMarkdown(&b, doc)
	text := strings.TrimSpace(blankLines.ReplaceAllString(b.String(), "\n\n"))
	if r := []rune(text); len(r) > maxPageChars {
		text = string(r[:maxPageChars])
	}
	return text
}

func (f *WebFetcher) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SamBot/1.0)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// checkDial sees the resolved address of every connection, so redirects and
// DNS rebinding cannot reach an internal service.
func (f *WebFetcher) checkDial(_, address string, _ syscall.RawConn) error {
	if f.allowed[address] {
		return nil
	}
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("parsing dial address %s: %w", address, err)
	}
	if !isPublicAddr(ap.Addr()) {
		return fmt.Errorf("refusing to connect to non-public address %s", address)
	}
	return nil
}

func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast())
}

func renderMarkdown(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			if unicode.IsSpace(rune(n.Data[0])) {
				b.WriteByte(' ')
			}
			b.WriteString(text)
			if unicode.IsSpace(rune(n.Data[len(n.Data)-1])) {
				b.WriteByte(' ')
			}
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Head, atom.Svg, atom.Nav, atom.Footer, atom.Iframe, atom.Form:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			level := int(n.Data[1] - '0')
			b.WriteString("\n\n" + strings.Repeat("#", level) + " ")
			renderChildren(b, n)
			b.WriteString("\n\n")
			return
		case atom.A:
			href := attr(n, "href")
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
				renderChildren(b, n)
				return
			}
			var inner strings.Builder
			renderChildren(&inner, n)
			b.WriteString("[" + strings.TrimSpace(inner.String()) + "](" + href + ")")
			return
		case atom.Li:
			b.WriteString("\n- ")
			renderChildren(b, n)
			return
		case atom.Strong, atom.B:
			b.WriteString("**")
			renderChildren(b, n)
			b.WriteString("**")
			return
		case atom.Em, atom.I:
			b.WriteString("_")
			renderChildren(b, n)
			b.WriteString("_")
			return
		case atom.Br:
			b.WriteString("\n")
			return
		case atom.P, atom.Div, atom.Section, atom.Article, atom.Ul, atom.Ol, atom.Table, atom.Tr, atom.Blockquote, atom.Pre:
			b.WriteString("\n\n")
			renderChildren(b, n)
			b.WriteString("\n\n")
			return
		}
	}
	renderChildren(b, n)
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderMarkdown(b, c)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

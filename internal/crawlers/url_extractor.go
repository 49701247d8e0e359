package crawlers

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/webgrab/internal/utils"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	cssURLPattern    = regexp.MustCompile(`url\(\s*['"]?([^'")]+?)['"]?\s*\)`)
	cssImportPattern = regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`)
)

// 不代表页面子资源的link rel
var ignoredLinkRels = map[string]bool{
	"canonical":    true,
	"alternate":    true,
	"next":         true,
	"prev":         true,
	"dns-prefetch": true,
	"preconnect":   true,
	"author":       true,
	"search":       true,
}

// URLExtractor 从HTML和CSS中提取子资源URL
// 静态模式没有渲染引擎,靠它模拟浏览器会发出的子资源请求
type URLExtractor struct {
	base *url.URL
	seen map[string]bool
	urls []string
}

// NewURLExtractor 创建URL提取器,相对地址按base解析
func NewURLExtractor(base *url.URL) *URLExtractor {
	return &URLExtractor{
		base: base,
		seen: make(map[string]bool),
	}
}

// ExtractFromHTML 提取HTML中引用的子资源,按出现顺序去重
// 不跟随<a>链接
func ExtractFromHTML(body []byte, base *url.URL) []string {
	e := NewURLExtractor(base)
	e.walkHTML(body)
	return e.urls
}

// ExtractFromCSS 提取CSS中url()和@import引用的资源
func ExtractFromCSS(body []byte, base *url.URL) []string {
	e := NewURLExtractor(base)
	e.addCSS(string(body))
	return e.urls
}

func (e *URLExtractor) walkHTML(body []byte) {
	z := html.NewTokenizer(bytes.NewReader(body))
	inStyle := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return
		case html.TextToken:
			if inStyle {
				e.addCSS(string(z.Text()))
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); atom.Lookup(name) == atom.Style {
				inStyle = false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Style && tt == html.StartTagToken {
				inStyle = true
			}
			e.addTag(tok)
		}
	}
}

func (e *URLExtractor) addTag(tok html.Token) {
	attrs := make(map[string]string, len(tok.Attr))
	for _, a := range tok.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}

	if style, ok := attrs["style"]; ok {
		e.addCSS(style)
	}

	switch tok.DataAtom {
	case atom.Base:
		// <base href>改变后续相对地址的解析基准
		if href := attrs["href"]; href != "" {
			if u, err := e.base.Parse(strings.TrimSpace(href)); err == nil {
				e.base = u
			}
		}
	case atom.Script, atom.Iframe, atom.Embed, atom.Track:
		e.add(attrs["src"])
	case atom.Img, atom.Source:
		e.add(attrs["src"])
		e.addSrcset(attrs["srcset"])
	case atom.Video:
		e.add(attrs["src"])
		e.add(attrs["poster"])
	case atom.Audio:
		e.add(attrs["src"])
	case atom.Input:
		if strings.EqualFold(attrs["type"], "image") {
			e.add(attrs["src"])
		}
	case atom.Object:
		e.add(attrs["data"])
	case atom.Link:
		rels := strings.Fields(strings.ToLower(attrs["rel"]))
		for _, rel := range rels {
			if ignoredLinkRels[rel] {
				return
			}
		}
		e.add(attrs["href"])
	}
}

// addSrcset 解析 "a.png 1x, b.png 2x"
func (e *URLExtractor) addSrcset(srcset string) {
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			e.add(fields[0])
		}
	}
}

func (e *URLExtractor) addCSS(css string) {
	for _, m := range cssImportPattern.FindAllStringSubmatch(css, -1) {
		e.add(m[1])
	}
	for _, m := range cssURLPattern.FindAllStringSubmatch(css, -1) {
		e.add(m[1])
	}
}

func (e *URLExtractor) add(ref string) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || utils.IsSkippable(ref) {
		return
	}

	u, err := e.base.Parse(ref)
	if err != nil {
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}
	u.Fragment = ""

	abs := u.String()
	if e.seen[abs] {
		return
	}
	e.seen[abs] = true
	e.urls = append(e.urls, abs)
}

// internal/browser/selector.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
)

// SelectorKind is the query language of a Selector.
type SelectorKind int

const (
	// KindCSS is a document-level CSS query.
	KindCSS SelectorKind = iota
	// KindXPath is an XPath expression evaluated against the document.
	KindXPath
	// KindPierce is a CSS query that descends into open shadow roots.
	KindPierce
)

func (k SelectorKind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindXPath:
		return "xpath"
	case KindPierce:
		return "pierce"
	default:
		return "unknown"
	}
}

// Selector identifies elements on a page.
type Selector struct {
	Kind SelectorKind
	Expr string
}

// CSS builds a document-level CSS selector.
func CSS(expr string) Selector { return Selector{Kind: KindCSS, Expr: expr} }

// XPath builds an XPath selector.
func XPath(expr string) Selector { return Selector{Kind: KindXPath, Expr: expr} }

// Pierce builds a CSS selector that also matches inside shadow roots.
func Pierce(expr string) Selector { return Selector{Kind: KindPierce, Expr: expr} }

// TestID selects by the data-testid attribute.
func TestID(id string) Selector {
	return CSS(fmt.Sprintf(`[data-testid=%q]`, id))
}

// Text selects tag elements whose own text equals text exactly.
func Text(tag, text string) Selector {
	return XPath(fmt.Sprintf("//%s[text()=%s]", tag, xpathLiteral(text)))
}

func (s Selector) String() string {
	return s.Kind.String() + "/" + s.Expr
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(parts, `, '"', `) + ")"
}

// deepQueryAllJS walks the document and every open shadow root collecting
// matches for a CSS selector, in document order.
const deepQueryAllJS = `(function(sel) {
	const out = [];
	const walk = (root) => {
		root.querySelectorAll(sel).forEach((el) => out.push(el));
		root.querySelectorAll('*').forEach((el) => { if (el.shadowRoot) walk(el.shadowRoot); });
	};
	walk(document);
	return out;
})`

// queryOptions maps the selector onto a chromedp query. Pierce selectors
// are resolved through a JS path returning the first deep match.
func (s Selector) queryOptions() (interface{}, []chromedp.QueryOption) {
	switch s.Kind {
	case KindXPath:
		return s.Expr, []chromedp.QueryOption{chromedp.BySearch}
	case KindPierce:
		return fmt.Sprintf("%s(%s)[0]", deepQueryAllJS, jsString(s.Expr)), []chromedp.QueryOption{chromedp.ByJSPath}
	default:
		return s.Expr, []chromedp.QueryOption{chromedp.ByQuery}
	}
}

// allElementsJS returns a JS expression yielding an array of every element
// the selector matches.
func (s Selector) allElementsJS() string {
	switch s.Kind {
	case KindXPath:
		return fmt.Sprintf(`(function(xp) {
	const snap = document.evaluate(xp, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < snap.snapshotLength; i++) out.push(snap.snapshotItem(i));
	return out;
})(%s)`, jsString(s.Expr))
	case KindPierce:
		return fmt.Sprintf("%s(%s)", deepQueryAllJS, jsString(s.Expr))
	default:
		return fmt.Sprintf("Array.from(document.querySelectorAll(%s))", jsString(s.Expr))
	}
}

// jsString encodes v as a JavaScript string literal.
func jsString(v string) string {
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(v)
	if err != nil {
		return `""`
	}
	return out
}

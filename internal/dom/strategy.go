// Package dom describes how stripedl looks at a page: lookup strategies,
// element handles and the page operations the automation flow needs. The live
// backend lives in internal/browser, the static one in internal/htmldoc.
package dom

import (
	"fmt"
	"strings"
)

// Kind identifies how a Strategy locates an element.
type Kind string

const (
	KindSelector Kind = "selector"  // CSS selector
	KindText     Kind = "text"      // text substring among candidate tags
	KindRoleText Kind = "role-text" // text substring among [role="button"]
	KindClass    Kind = "class"     // class substring among clickables
	KindXPath    Kind = "xpath"     // structural path
	KindAny      Kind = "any"       // first matching sub-strategy
)

// Default candidate selectors per kind.
const (
	ButtonSelector     = "button"
	RoleButtonSelector = `[role="button"]`
	ClickableSelector  = `button, [role="button"]`
)

// Strategy is a rule for locating a DOM element.
type Strategy struct {
	Kind          Kind
	Value         string
	Candidates    string
	CaseSensitive bool
	Any           []Strategy
}

// Selector matches the first visible element for a CSS selector.
func Selector(css string) Strategy {
	return Strategy{Kind: KindSelector, Value: css}
}

// Text matches elements whose textContent contains text, ignoring case.
// candidates defaults to "button".
func Text(text string, candidates ...string) Strategy {
	c := ButtonSelector
	if len(candidates) > 0 {
		c = strings.Join(candidates, ", ")
	}
	return Strategy{Kind: KindText, Value: text, Candidates: c}
}

// RoleText matches [role="button"] elements whose text contains text.
func RoleText(text string) Strategy {
	return Strategy{Kind: KindRoleText, Value: text, Candidates: RoleButtonSelector}
}

// ClassContains matches clickable elements whose class attribute contains sub.
func ClassContains(sub string) Strategy {
	return Strategy{Kind: KindClass, Value: sub, Candidates: ClickableSelector}
}

// XPath matches the first node of an XPath expression.
func XPath(path string) Strategy {
	return Strategy{Kind: KindXPath, Value: path}
}

// AnyOf tries each strategy in order and takes the first that matches.
func AnyOf(strategies ...Strategy) Strategy {
	return Strategy{Kind: KindAny, Any: strategies}
}

// Exact returns a copy of s that compares text case-sensitively.
func (s Strategy) Exact() Strategy {
	s.CaseSensitive = true
	return s
}

// CandidateSelector is the CSS selector whose matches are filtered by the
// strategy. It is empty for xpath and any.
func (s Strategy) CandidateSelector() string {
	switch s.Kind {
	case KindSelector:
		return s.Value
	case KindText, KindRoleText, KindClass:
		if s.Candidates != "" {
			return s.Candidates
		}
		if s.Kind == KindRoleText {
			return RoleButtonSelector
		}
		if s.Kind == KindClass {
			return ClickableSelector
		}
		return ButtonSelector
	default:
		return ""
	}
}

// Accepts reports whether a visible candidate with the given info satisfies
// the strategy. Visibility itself is checked by the backend.
func (s Strategy) Accepts(info ElementInfo) bool {
	switch s.Kind {
	case KindSelector, KindXPath:
		return true
	case KindText, KindRoleText:
		return contains(info.Text, s.Value, s.CaseSensitive)
	case KindClass:
		return contains(info.Class, s.Value, s.CaseSensitive)
	default:
		return false
	}
}

func contains(haystack, needle string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(haystack, needle)
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (s Strategy) String() string {
	switch s.Kind {
	case KindSelector:
		return fmt.Sprintf("selector %s", s.Value)
	case KindText, KindRoleText:
		return fmt.Sprintf("%s %q in %s", s.Kind, s.Value, s.CandidateSelector())
	case KindClass:
		return fmt.Sprintf("class containing %q in %s", s.Value, s.CandidateSelector())
	case KindXPath:
		return fmt.Sprintf("xpath %s", s.Value)
	case KindAny:
		parts := make([]string, len(s.Any))
		for i, sub := range s.Any {
			parts[i] = sub.String()
		}
		return "any of [" + strings.Join(parts, "; ") + "]"
	default:
		return string(s.Kind)
	}
}

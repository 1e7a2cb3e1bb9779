package evaluator

import (
	"context"

	"github.com/yknld/geminiloop/pkg/browser"
)

// interactiveTargetScript is the page-side script executed via evaluate
// to discover actionable elements, ranked by salience (spec §4.10
// "Interactive-target discovery"). It computes a stable selector per
// element with priority #id → [data-testid] → tag[aria-label] →
// tag[name] → tag.firstClass, and returns at most 15 entries ranked by
// {has-id, has-text, above-the-fold}.
const interactiveTargetScript = `(function(){
  function selectorFor(el) {
    if (el.id) return '#' + el.id;
    var testid = el.getAttribute('data-testid');
    if (testid) return '[data-testid="' + testid + '"]';
    var aria = el.getAttribute('aria-label');
    if (aria) return el.tagName.toLowerCase() + '[aria-label="' + aria + '"]';
    var name = el.getAttribute('name');
    if (name) return el.tagName.toLowerCase() + '[name="' + name + '"]';
    if (el.classList.length > 0) return el.tagName.toLowerCase() + '.' + el.classList[0];
    return el.tagName.toLowerCase();
  }

  var selectorTags = 'a,button,input,select,textarea,[role="button"],[onclick]';
  var elements = Array.prototype.slice.call(document.querySelectorAll(selectorTags));
  var viewportHeight = window.innerHeight || 0;

  var candidates = elements.filter(function(el) {
    var rect = el.getBoundingClientRect();
    return rect.width > 0 && rect.height > 0;
  }).map(function(el) {
    var rect = el.getBoundingClientRect();
    var text = (el.innerText || el.value || '').trim().slice(0, 80);
    return {
      selector: selectorFor(el),
      tag: el.tagName.toLowerCase(),
      role: el.getAttribute('role') || '',
      text: text,
      type: el.getAttribute('type') || '',
      hasId: !!el.id,
      hasText: text.length > 0,
      aboveFold: rect.top >= 0 && rect.top < viewportHeight
    };
  });

  candidates.sort(function(a, b) {
    var scoreA = (a.hasId ? 4 : 0) + (a.hasText ? 2 : 0) + (a.aboveFold ? 1 : 0);
    var scoreB = (b.hasId ? 4 : 0) + (b.hasText ? 2 : 0) + (b.aboveFold ? 1 : 0);
    return scoreB - scoreA;
  });

  return candidates.slice(0, 15).map(function(c) {
    return {selector: c.selector, tag: c.tag, role: c.role, text: c.text, type: c.type};
  });
})()`

func discoverInteractiveTargets(ctx context.Context, b *browser.Client) []InteractiveTarget {
	result, err := b.Evaluate(ctx, interactiveTargetScript)
	if err != nil {
		return nil
	}

	items, ok := result.Result.([]any)
	if !ok {
		return nil
	}

	out := make([]InteractiveTarget, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, InteractiveTarget{
			Selector: stringify(m["selector"]),
			Tag:      stringify(m["tag"]),
			Role:     stringify(m["role"]),
			Text:     stringify(m["text"]),
			Type:     stringify(m["type"]),
		})
	}
	return out
}

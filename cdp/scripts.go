package cdp

import (
	"encoding/json"
	"fmt"
)

// jsonEncode renders v as a JavaScript literal.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// findScript runs with this bound to a document or to a frame element and
// returns the matching elements in document order.
func findScript(using, value string) string {
	return fmt.Sprintf(`function() {
	const doc = this.nodeType === 9 ? this : this.contentDocument;
	if (!doc) {
		throw new Error('frame has no document');
	}
	const using = %s, value = %s;
	const out = [];
	switch (using) {
	case 'css selector':
		out.push(...doc.querySelectorAll(value));
		break;
	case 'tag name':
		out.push(...doc.getElementsByTagName(value));
		break;
	case 'xpath': {
		const r = doc.evaluate(value, doc, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		for (let i = 0; i < r.snapshotLength; i++) {
			const n = r.snapshotItem(i);
			if (n.nodeType === 1) out.push(n);
		}
		break;
	}
	case 'link text':
	case 'partial link text':
		for (const a of doc.querySelectorAll('a')) {
			const text = (a.innerText || a.textContent || '').trim();
			if (using === 'link text' ? text === value : text.includes(value)) out.push(a);
		}
		break;
	default:
		throw new Error('unsupported locator strategy ' + using);
	}
	return out;
}`, jsonEncode(using), jsonEncode(value))
}

func indexScript(i int) string {
	return fmt.Sprintf(`function() { return this[%d]; }`, i)
}

const lengthScript = `function() { return this.length; }`

const frameScript = `function() {
	const frames = this.nodeType === 9 ? this.querySelectorAll('iframe, frame') : this.contentDocument.querySelectorAll('iframe, frame');
	return frames;
}`

const isFrameScript = `function() {
	return (this.tagName === 'IFRAME' || this.tagName === 'FRAME') && !!this.contentDocument;
}`

const displayedScript = `function() {
	if (!this.isConnected || this.getClientRects().length === 0) return false;
	const s = this.ownerDocument.defaultView.getComputedStyle(this);
	return s.visibility !== 'hidden' && s.visibility !== 'collapse' && s.opacity !== '0';
}`

var textScript = `function() {
	const displayed = ` + displayedScript + `;
	if (!displayed.call(this)) return '';
	return this.innerText;
}`

const enabledScript = `function() { return !this.disabled; }`

const tagScript = `function() { return this.tagName.toLowerCase(); }`

// Properties that change while the user types are read live, the way
// browser drivers answer the attribute command.
func attributeScript(name string) string {
	return fmt.Sprintf(`function() {
	const name = %s;
	if (name === 'value' || name === 'checked' || name === 'selected') {
		const v = this[name];
		if (v === undefined || v === null || v === false) return null;
		return String(v);
	}
	return this.getAttribute(name);
}`, jsonEncode(name))
}

const clearScript = `function() {
	if ('value' in this) {
		this.value = '';
	} else if (this.isContentEditable) {
		this.innerHTML = '';
	}
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`

const focusScript = `function() {
	this.focus();
	if (typeof this.setSelectionRange === 'function') {
		try {
			const n = this.value.length;
			this.setSelectionRange(n, n);
		} catch (e) {}
	}
}`

const rectScript = `function() {
	const r = this.getBoundingClientRect();
	const w = this.ownerDocument.defaultView;
	return {x: r.left + w.scrollX, y: r.top + w.scrollY, width: r.width, height: r.height};
}`

// pointScript scrolls the element into view and reports where a click on its
// center lands, in top-level viewport coordinates.
var pointScript = `function() {
	const displayed = ` + displayedScript + `;
	if (!displayed.call(this)) return {state: 'hidden'};
	this.scrollIntoView({block: 'center', inline: 'center'});
	const r = this.getBoundingClientRect();
	let x = r.left + r.width / 2, y = r.top + r.height / 2;
	const hit = this.ownerDocument.elementFromPoint(x, y);
	const state = hit && hit !== this && !this.contains(hit) ? 'obscured' : 'ok';
	for (let w = this.ownerDocument.defaultView; w.frameElement; w = w.parent) {
		const f = w.frameElement.getBoundingClientRect();
		x += f.left + w.frameElement.clientLeft;
		y += f.top + w.frameElement.clientTop;
	}
	return {state: state, x: x, y: y};
}`

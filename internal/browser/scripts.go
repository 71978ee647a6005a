package browser

const describeScript = `() => ({
	tag: this.tagName.toLowerCase(),
	text: (this.textContent || '').trim(),
	className: typeof this.className === 'string' ? this.className : (this.getAttribute('class') || ''),
	role: this.getAttribute('role') || '',
	visible: this.offsetParent !== null,
})`

// candidatesScript describes every match of a selector in document order.
const candidatesScript = `(sel) => Array.from(document.querySelectorAll(sel)).map(el => ({
	tag: el.tagName.toLowerCase(),
	text: (el.textContent || '').trim(),
	className: typeof el.className === 'string' ? el.className : (el.getAttribute('class') || ''),
	role: el.getAttribute('role') || '',
	visible: el.offsetParent !== null,
}))`

const nthScript = `(sel, i) => document.querySelectorAll(sel)[i] || null`

const clickablesScript = `() => Array.from(document.querySelectorAll('button, a, [role="button"]')).map(el => ({
	tag: el.tagName.toLowerCase(),
	text: (el.textContent || '').trim(),
	className: typeof el.className === 'string' ? el.className : (el.getAttribute('class') || ''),
	role: el.getAttribute('role') || '',
	visible: el.offsetParent !== null,
}))`

const forceClickScript = `() => this.click()`

// notifyScript shows a toast in the top right corner for five seconds.
const notifyScript = `(message, type) => {
	const existing = document.querySelector('.stripedl-notification');
	if (existing) existing.remove();

	const n = document.createElement('div');
	const error = type === 'error';
	n.className = 'stripedl-notification ' + type;
	n.style.cssText = [
		'position: fixed', 'top: 20px', 'right: 20px', 'padding: 12px 24px',
		'background: ' + (error ? '#fee2e2' : '#ecfdf5'),
		'border: 1px solid ' + (error ? '#fca5a5' : '#6ee7b7'),
		'color: ' + (error ? '#dc2626' : '#059669'),
		'border-radius: 6px', 'z-index: 9999',
		'font-family: system-ui, -apple-system, sans-serif',
		'box-shadow: 0 4px 6px -1px rgb(0 0 0 / 0.1)',
	].join(';');
	n.textContent = message;
	(document.body || document.documentElement).appendChild(n);
	setTimeout(() => n.remove(), 5000);
}`

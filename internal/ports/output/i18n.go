package output

// Translator renders user-facing messages. Unknown keys fall back to the
// default locale, then to the key itself.
type Translator interface {
	// T renders key for locale; data fills template placeholders and may be nil.
	T(locale, key string, data map[string]any) string
}

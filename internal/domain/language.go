package domain

// Language is a canonical language tag understood as a translation endpoint.
type Language string

const (
	LanguageChinese    Language = "chinese"
	LanguageVietnamese Language = "vietnamese"
	LanguageUnknown    Language = "unknown"
)

// Supported reports whether l is one of the two translation endpoints.
func (l Language) Supported() bool {
	return l == LanguageChinese || l == LanguageVietnamese
}

// Counterpart returns the other supported language. Anything that is not
// Chinese translates into Chinese.
func (l Language) Counterpart() Language {
	if l == LanguageChinese {
		return LanguageVietnamese
	}
	return LanguageChinese
}

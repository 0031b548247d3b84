package usecase

import (
	"fmt"
	"strings"

	"translator-bot/internal/domain"
)

const systemPrompt = "你是一个专业的翻译助手，需要准确翻译用户的文本。"

var modelParams = domain.ModelParams{Temperature: 0.3, MaxTokens: 2048}

// Phrases models put in front of the actual translation.
var preambleMarkers = []string{"翻译如下", "以下是翻译结果", "Translation:"}

var languageNames = map[domain.Language]string{
	domain.LanguageChinese:    "中文",
	domain.LanguageVietnamese: "越南语",
}

func buildPromptMessages(text string, source, target domain.Language) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt(text, source, target)},
	}
}

func userPrompt(text string, source, target domain.Language) string {
	switch {
	case source == domain.LanguageChinese && target == domain.LanguageVietnamese:
		return "请将以下中文文本准确翻译成越南语，保持原文的语气和风格:\n\n" + text
	case source == domain.LanguageVietnamese && target == domain.LanguageChinese:
		return "请将以下越南语文本准确翻译成中文，保持原文的语气和风格:\n\n" + text
	default:
		return fmt.Sprintf("请将以下%s文本翻译成%s:\n\n%s", languageName(source), languageName(target), text)
	}
}

func languageName(l domain.Language) string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}

// cleanTranslation drops everything up to and including the last preamble
// marker. Output that would become empty is returned trimmed but otherwise
// untouched.
func cleanTranslation(raw string) string {
	out := strings.TrimSpace(raw)

	cut := -1
	last := -1
	for _, marker := range preambleMarkers {
		if i := strings.LastIndex(out, marker); i > last {
			last = i
			cut = i + len(marker)
		}
	}
	if cut < 0 {
		return out
	}

	cleaned := strings.TrimSpace(out[cut:])
	cleaned = strings.TrimSpace(strings.TrimLeft(cleaned, ":："))
	if cleaned == "" {
		return out
	}
	return cleaned
}

func stripMention(text, mention string) string {
	if mention != "" {
		text = strings.ReplaceAll(text, mention, "")
	}
	return strings.TrimSpace(text)
}

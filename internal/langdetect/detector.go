// Package langdetect classifies chat text into one of the two translation
// endpoints, or domain.LanguageUnknown.
package langdetect

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pemistahl/lingua-go"

	"translator-bot/internal/domain"
)

// logPreviewRunes bounds how much of the input is echoed into warnings.
const logPreviewRunes = 30

// classifier is the subset of lingua.LanguageDetector used here.
type classifier interface {
	DetectLanguageOf(text string) (lingua.Language, bool)
}

// Detector maps lingua results onto canonical language tags. It never fails:
// anything it cannot classify comes back as domain.LanguageUnknown.
type Detector struct {
	classifier classifier
	logger     *slog.Logger
}

// New builds a Detector over Chinese, Vietnamese and English. English is a
// candidate only so that Latin text without Vietnamese evidence is reported
// as unknown instead of being forced into Vietnamese.
func New(logger *slog.Logger) *Detector {
	c := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.Chinese, lingua.Vietnamese, lingua.English).
		Build()
	return newWithClassifier(c, logger)
}

func newWithClassifier(c classifier, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{classifier: c, logger: logger}
}

// Detect returns the canonical language of text.
func (d *Detector) Detect(text string) (lang domain.Language) {
	text = strings.TrimSpace(text)
	if text == "" || d.classifier == nil {
		return domain.LanguageUnknown
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("language detection failed",
				"text", preview(text),
				"err", fmt.Sprint(r),
			)
			lang = domain.LanguageUnknown
		}
	}()

	detected, ok := d.classifier.DetectLanguageOf(text)
	if !ok {
		return domain.LanguageUnknown
	}
	return canonical(detected)
}

// canonical folds lingua languages into the two supported tags.
// lingua has no separate entries for Chinese scripts, so simplified and
// traditional text both arrive as lingua.Chinese.
func canonical(l lingua.Language) domain.Language {
	switch l {
	case lingua.Chinese:
		return domain.LanguageChinese
	case lingua.Vietnamese:
		return domain.LanguageVietnamese
	default:
		return domain.LanguageUnknown
	}
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= logPreviewRunes {
		return s
	}
	return string(runes[:logPreviewRunes]) + "..."
}

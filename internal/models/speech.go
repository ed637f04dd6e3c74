package models

// SpeechRequest carries one synthesis action's parameters. Ephemeral.
type SpeechRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Speed    float64 `json:"speed"`
}

// languageLabels maps the supported synthesis language codes to the
// human-readable names shown by the hosting layer.
var languageLabels = map[string]string{
	"vi-VN": "Tiếng Việt",
	"en-US": "English (US)",
	"en-GB": "English (UK)",
	"fr-FR": "Français",
	"de-DE": "Deutsch",
	"ja-JP": "日本語",
	"ko-KR": "한국어",
	"zh-CN": "中文 (简体)",
}

// LanguageLabel returns the display name for a language code, or the code
// itself when it is not in the supported set.
func LanguageLabel(code string) string {
	if label, ok := languageLabels[code]; ok {
		return label
	}
	return code
}

// SupportedLanguage reports whether the code is in the closed language set.
func SupportedLanguage(code string) bool {
	_, ok := languageLabels[code]
	return ok
}

// Languages returns a copy of the code-to-label mapping.
func Languages() map[string]string {
	out := make(map[string]string, len(languageLabels))
	for code, label := range languageLabels {
		out[code] = label
	}
	return out
}

// Package i18n loads the UI string catalogs.
//
// A Localizer is built once at startup and handed to the components that
// render user-facing text; there is no package-level current language.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// DefaultLanguage is used for missing keys and unknown languages.
const DefaultLanguage = "en"

// Localizer resolves message keys for one language.
type Localizer struct {
	lang     string
	messages map[string]string
	fallback map[string]string
}

// New returns a Localizer for lang, falling back to English for keys the
// catalog does not define.
func New(lang string) (*Localizer, error) {
	fallback, err := loadCatalog(DefaultLanguage)
	if err != nil {
		return nil, err
	}
	lang = normalize(lang)
	if lang == DefaultLanguage {
		return &Localizer{lang: lang, messages: fallback, fallback: fallback}, nil
	}
	messages, err := loadCatalog(lang)
	if err != nil {
		return nil, err
	}
	return &Localizer{lang: lang, messages: messages, fallback: fallback}, nil
}

// Languages lists the embedded catalogs.
func Languages() []string {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return []string{DefaultLanguage}
	}
	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(langs)
	return langs
}

// Language returns the active language code.
func (l *Localizer) Language() string {
	return l.lang
}

// T returns the message for key, formatted with args when given.
// Unknown keys render as the key itself.
func (l *Localizer) T(key string, args ...any) string {
	msg, ok := l.messages[key]
	if !ok {
		msg, ok = l.fallback[key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// normalize maps "de-DE" and "de_DE" to "de".
func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

func loadCatalog(lang string) (map[string]string, error) {
	data, err := localeFS.ReadFile(path.Join("locales", lang+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown language %q", lang)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse %s catalog: %w", lang, err)
	}
	out := make(map[string]string)
	flatten("", tree, out)
	return out, nil
}

// flatten turns nested YAML maps into dotted keys.
func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

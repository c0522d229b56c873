package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "pt-BR"

//go:embed locales/*.yaml
var LocalesFS embed.FS

// Translator renders notification texts for one language.
type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	if langCode == "" {
		langCode = DefaultLanguage
	}
	data, err := fs.ReadFile(fsys, path.Join("locales", langCode+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("read translation file for %q: %w", langCode, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = langCode
	return t, nil
}

// MustDefault returns the embedded default-language translator.
func MustDefault() *Translator {
	t, err := NewTranslator(LocalesFS, DefaultLanguage)
	if err != nil {
		panic(err)
	}
	return t
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

func (t *Translator) Lang() string { return t.lang }

// T formats the message for key. Unknown keys come back verbatim.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

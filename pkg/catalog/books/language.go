package books

import "fmt"

// Language is a catalogue language filter. The zero value is [AllBooks].
type Language int

const (
	AllBooks Language = iota
	English
	German
	French
	Spanish
	Italian
	Portuguese
	Dutch
	Finnish
	Swedish
	Chinese
	Japanese
	Russian
)

var languageCodes = [...]string{
	AllBooks:   "",
	English:    "en",
	German:     "de",
	French:     "fr",
	Spanish:    "es",
	Italian:    "it",
	Portuguese: "pt",
	Dutch:      "nl",
	Finnish:    "fi",
	Swedish:    "sv",
	Chinese:    "zh",
	Japanese:   "ja",
	Russian:    "ru",
}

var languageNames = [...]string{
	AllBooks:   "All Books",
	English:    "English",
	German:     "German",
	French:     "French",
	Spanish:    "Spanish",
	Italian:    "Italian",
	Portuguese: "Portuguese",
	Dutch:      "Dutch",
	Finnish:    "Finnish",
	Swedish:    "Swedish",
	Chinese:    "Chinese",
	Japanese:   "Japanese",
	Russian:    "Russian",
}

// ISOCode returns the ISO 639-1 code sent to the catalogue. AllBooks has
// no code.
func (l Language) ISOCode() string {
	if !l.Valid() {
		return ""
	}
	return languageCodes[l]
}

// String returns the display name.
func (l Language) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Language(%d)", int(l))
	}
	return languageNames[l]
}

// Valid reports whether l is one of the declared languages.
func (l Language) Valid() bool {
	return l >= AllBooks && int(l) < len(languageCodes)
}

// Languages returns every declared language, AllBooks first.
func Languages() []Language {
	out := make([]Language, len(languageCodes))
	for i := range out {
		out[i] = Language(i)
	}
	return out
}

// ParseLanguage maps an ISO code to a Language. The empty string and "all"
// map to AllBooks.
func ParseLanguage(code string) (Language, error) {
	if code == "all" {
		return AllBooks, nil
	}
	for i, c := range languageCodes {
		if c == code {
			return Language(i), nil
		}
	}
	return AllBooks, fmt.Errorf("books: unknown language %q", code)
}

package sensevoice

import "strings"

// Language is one of the model's language id tags. The set is closed;
// there is no unknown value, and LanguageByCode reports a code outside
// the set with false.
type Language struct {
	Code string
	Name string
}

var (
	LangEnglish   = Language{Code: "en", Name: "English"}
	LangChinese   = Language{Code: "zh", Name: "Chinese"}
	LangJapanese  = Language{Code: "ja", Name: "Japanese"}
	LangKorean    = Language{Code: "ko", Name: "Korean"}
	LangCantonese = Language{Code: "yue", Name: "Cantonese"}
)

var languagesByCode = map[string]Language{
	"en":  LangEnglish,
	"zh":  LangChinese,
	"ja":  LangJapanese,
	"ko":  LangKorean,
	"yue": LangCantonese,
}

// LanguageByCode resolves a tag code to its canonical language.
func LanguageByCode(code string) (Language, bool) {
	l, ok := languagesByCode[strings.ToLower(code)]
	return l, ok
}

// languageIDs are the model's task-query embedding rows per language.
// "auto" shares the unconditioned row.
var languageIDs = map[string]int{
	"auto": 0,
	"zh":   3,
	"en":   4,
	"yue":  7,
	"ja":   11,
	"ko":   12,
}

// Task-query embedding rows that are not language conditioned.
const (
	eventEmotionQueryID = 1
	textNormWithITNID   = 14
	textNormWithoutID   = 15
)

// LanguageID returns the embedding row for a language code, falling back
// to the auto row for unknown codes.
func LanguageID(code string) int {
	if id, ok := languageIDs[strings.ToLower(code)]; ok {
		return id
	}
	return languageIDs["auto"]
}

var emotions = map[string]struct{}{
	"HAPPY": {}, "SAD": {}, "ANGRY": {}, "NEUTRAL": {},
	"FEARFUL": {}, "DISGUSTED": {}, "SURPRISED": {},
}

var audioEvents = map[string]struct{}{
	"BGM": {}, "Applause": {}, "Laughter": {}, "Crying": {},
	"Sneeze": {}, "Cough": {}, "Breath": {}, "Speech": {},
}

// Metadata accumulates the auxiliary tags decoded from one chunk. At most
// one language and one emotion are kept (last seen wins); events
// accumulate into a set.
type Metadata struct {
	Language    string // canonical name, empty if absent
	LanguageCode string
	Emotion     string
	AudioEvents []string
	HasITN      bool

	eventSet map[string]struct{}
}

// observe processes a single tag body (the text between <| and |>).
// Unknown tags are ignored here; the caller keeps them in raw text.
func (m *Metadata) observe(body string) bool {
	if lang, ok := LanguageByCode(body); ok {
		m.Language = lang.Name
		m.LanguageCode = lang.Code
		return true
	}
	if _, ok := emotions[body]; ok {
		m.Emotion = body
		return true
	}
	if _, ok := audioEvents[body]; ok {
		if m.eventSet == nil {
			m.eventSet = make(map[string]struct{})
		}
		if _, seen := m.eventSet[body]; !seen {
			m.eventSet[body] = struct{}{}
			m.AudioEvents = append(m.AudioEvents, body)
		}
		return true
	}
	switch body {
	case "withitn":
		m.HasITN = true
		return true
	case "woitn":
		m.HasITN = false
		return true
	}
	return false
}

// HasEvent reports whether the named event was detected.
func (m *Metadata) HasEvent(name string) bool {
	_, ok := m.eventSet[name]
	return ok
}

// parseTag extracts the body of a `<|TAG|>` piece. Returns false when the
// piece is not tag-shaped.
func parseTag(piece string) (string, bool) {
	if len(piece) < 5 || !strings.HasPrefix(piece, "<|") || !strings.HasSuffix(piece, "|>") {
		return "", false
	}
	return piece[2 : len(piece)-2], true
}

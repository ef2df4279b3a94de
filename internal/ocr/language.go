package ocr

import (
	"strings"

	"golang.org/x/text/language"
)

const defaultTesseractLang = "eng"

// TesseractLanguage maps a BCP 47 tag ("en", "de-AT") to the ISO 639-3 code
// tesseract expects for its traineddata ("eng", "deu"). Values that already
// look like tesseract codes, including "eng+deu" combinations, pass through.
func TesseractLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return defaultTesseractLang
	}
	if strings.Contains(tag, "+") {
		return tag
	}
	t, err := language.Parse(tag)
	if err != nil {
		return defaultTesseractLang
	}
	base, conf := t.Base()
	if conf == language.No {
		return defaultTesseractLang
	}
	if iso3 := base.ISO3(); iso3 != "" {
		return iso3
	}
	return defaultTesseractLang
}

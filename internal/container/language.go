package container

import (
	"fmt"
)

// Language is a packed ISO 639-2/T language code.
type Language uint16

// LanguageUndetermined is the "und" language.
var LanguageUndetermined = mustPackLanguage("und")

func mustPackLanguage(code string) Language {
	l, err := PackLanguage(code)
	if err != nil {
		panic(err)
	}
	return l
}

// PackLanguage packs a three-letter ISO 639-2/T code.
func PackLanguage(code string) (Language, error) {
	if len(code) != 3 {
		return 0, fmt.Errorf("invalid language code '%s'", code)
	}

	var l Language
	for i := 0; i < 3; i++ {
		c := code[i]
		if c < 'a' || c > 'z' {
			return 0, fmt.Errorf("invalid language code '%s'", code)
		}
		l = l<<5 | Language(c-0x60)
	}

	return l, nil
}

func languageFromBytes(b [3]byte) Language {
	return Language(uint16((b[0]-0x60)&0x1F)<<10 | uint16((b[1]-0x60)&0x1F)<<5 | uint16((b[2]-0x60)&0x1F))
}

func (l Language) bytes() [3]byte {
	return [3]byte{
		byte(l>>10&0x1F) + 0x60,
		byte(l>>5&0x1F) + 0x60,
		byte(l&0x1F) + 0x60,
	}
}

// String implements fmt.Stringer.
func (l Language) String() string {
	b := l.bytes()
	return string(b[:])
}

package model

import (
	"strconv"
	"strings"
)

// Language is a source language a submission can be declared in.
type Language int

// Known languages. Order is the report row order.
const (
	C Language = iota
	Java
	Kotlin
	Python
)

var languageInfo = [...]struct {
	name   string
	prefix string
}{
	C:      {"C", "c"},
	Java:   {"Java", "java"},
	Kotlin: {"Kotlin", "kotlin"},
	Python: {"Python", "python"},
}

// Languages returns all known languages in declaration order.
func Languages() []Language {
	return []Language{C, Java, Kotlin, Python}
}

func (l Language) String() string {
	if l < 0 || int(l) >= len(languageInfo) {
		return "Language(" + strconv.Itoa(int(l)) + ")"
	}
	return languageInfo[l].name
}

// Prefix is the wire language id prefix, e.g. "java" for "java", "java17".
func (l Language) Prefix() string {
	if l < 0 || int(l) >= len(languageInfo) {
		return ""
	}
	return languageInfo[l].prefix
}

// ParseLanguage maps a feed language id to the first language whose prefix it starts with.
// Any id starting with "c" (c, cpp, csharp) maps to C.
func ParseLanguage(id string) (Language, bool) {
	for _, l := range Languages() {
		if strings.HasPrefix(id, l.Prefix()) {
			return l, true
		}
	}
	return 0, false
}

package resolver

import (
	"errors"
	"strings"
	"unicode"

	"github.com/kalambet/frontdesk/internal/ranking"
)

// Lang is the language replies are written in.
type Lang string

const (
	English   Lang = "en"
	Norwegian Lang = "nb"
)

// DetectLang guesses the language of msg. Words that are Norwegian-only
// function words or contain æ, ø or å count for Norwegian; English-only
// function words count for English. Ties go to English.
func DetectLang(msg string) Lang {
	words := strings.FieldsFunc(strings.ToLower(msg), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	nb, en := 0, 0
	for _, w := range words {
		if strings.ContainsAny(w, "æøå") {
			nb++
			continue
		}
		isNB, isEN := ranking.IsNorwegianStopWord(w), ranking.IsEnglishStopWord(w)
		switch {
		case isNB && !isEN:
			nb++
		case isEN && !isNB:
			en++
		}
	}
	if nb > en {
		return Norwegian
	}
	return English
}

type phrases struct {
	unknownTenant    string
	originNotAllowed string
	emptyMessage     string
	notConfigured    string
	upstream         string
	noAnswer         string
}

var catalog = map[Lang]phrases{
	English: {
		unknownTenant:    "This assistant is not available.",
		originNotAllowed: "This site is not allowed to use this assistant.",
		emptyMessage:     "Please type a question.",
		notConfigured:    "The assistant is not configured yet. Please try again later.",
		upstream:         "Sorry, I can't reach the assistant right now. Please try again in a moment.",
		noAnswer:         "Sorry, I couldn't generate an answer. Please try rephrasing your question.",
	},
	Norwegian: {
		unknownTenant:    "Denne assistenten er ikke tilgjengelig.",
		originNotAllowed: "Dette nettstedet har ikke tilgang til assistenten.",
		emptyMessage:     "Skriv inn et spørsmål.",
		notConfigured:    "Assistenten er ikke satt opp ennå. Prøv igjen senere.",
		upstream:         "Beklager, jeg får ikke kontakt med assistenten akkurat nå. Prøv igjen om litt.",
		noAnswer:         "Beklager, jeg klarte ikke å lage et svar. Prøv å formulere spørsmålet på nytt.",
	},
}

func text(l Lang) phrases {
	if p, ok := catalog[l]; ok {
		return p
	}
	return catalog[English]
}

// errorText returns the user-facing reply for a Resolve error.
func errorText(l Lang, err error) string {
	p := text(l)
	switch {
	case errors.Is(err, ErrUnknownTenant):
		return p.unknownTenant
	case errors.Is(err, ErrOriginNotAllowed):
		return p.originNotAllowed
	case errors.Is(err, ErrEmptyMessage):
		return p.emptyMessage
	case errors.Is(err, ErrMissingCredential):
		return p.notConfigured
	default:
		return p.upstream
	}
}

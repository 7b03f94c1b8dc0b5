// Package ranking scores knowledge-base entries against a query by keyword
// overlap.
package ranking

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// stopWords are dropped from both queries and entries: Norwegian (bokmål and
// common nynorsk forms) and English function words. Each word is stored in
// its cleaned form so that it matches what Tokenize produces; "på" becomes
// "pa" after decomposition. Words that clean into several fragments ("både"
// into "ba" and "de") are left out, since a fragment alone is not a function
// word.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(norwegianStopWords + " " + englishStopWords) {
		if f := clean(w); len(f) == 1 {
			stopWords[f[0]] = struct{}{}
		}
	}
}

const norwegianStopWords = `
alle at av bare begge ble blei bli blir blitt både da de deg dei deira deires
dem den denne der dere deres det dette di din disse ditt du dykk dykkar då eg
ein eit eitt eller elles en ene eneste enhver enn er et ett etter for fordi fra
før ha hadde han hans har hennar henne hennes her hjå ho honom hoss hossen
hun hva hvem hver hvilke hvilken hvis hvor hvordan hvorfor i ikke ikkje ingen
ingi inkje inn inni ja jeg kan kom korleis korso kun kunne kva kvar kvarhelst
kven kvi kvifor man mange me med medan meg meget mellom men mi min mine mitt mot
mykje ned no noe noen noka noko nokon nokor nokre nå når og også om opp oss
over på samme seg selv si sia sidan siden sin sine sitt sjøl skal skulle slik
so som somme somt så sånn til um upp ut uten var vart varte ved vere verte vi
vil ville vore vors vort vår være vært å
`

const englishStopWords = `
a about above after again against all am an and any are as at be because been
before being below between both but by can could did do does doing down during
each few for from further had has have having he her here hers herself him
himself his how i if in into is it its itself just me more most my myself no
nor not now of off on once only or other our ours ourselves out over own same
she should so some such than that the their theirs them themselves then there
these they this those through to too under until up very was we were what when
where which while who whom why will with would you your yours yourself
yourselves
`

// extendedLetters are letters the tokenizer always keeps even where a
// general word-character test would not be enough.
const extendedLetters = "æøå"

// Tokenize lowercases s, applies canonical decomposition (NFD), turns every
// rune outside word characters, whitespace, the extended letters and '-'
// into a space, splits on whitespace and drops stop words.
//
// Combining marks produced by NFD are not word characters, so an accented
// letter splits into its base letter followed by a token break.
func Tokenize(s string) []string {
	fields := clean(s)
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func clean(s string) []string {
	decomposed := norm.NFD.String(strings.ToLower(s))
	return strings.Fields(strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) || r == '-' || strings.ContainsRune(extendedLetters, r) {
			return r
		}
		return ' '
	}, decomposed))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// tokenSet returns the distinct tokens of s.
func tokenSet(s string) map[string]struct{} {
	toks := Tokenize(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// IsNorwegianStopWord reports whether w, lowercased and in its original
// spelling, is a Norwegian function word.
func IsNorwegianStopWord(w string) bool {
	_, ok := norwegianSet[w]
	return ok
}

// IsEnglishStopWord reports whether w, lowercased, is an English function
// word.
func IsEnglishStopWord(w string) bool {
	_, ok := englishSet[w]
	return ok
}

var (
	norwegianSet = wordSet(norwegianStopWords)
	englishSet   = wordSet(englishStopWords)
)

func wordSet(list string) map[string]struct{} {
	m := make(map[string]struct{})
	for _, w := range strings.Fields(list) {
		m[w] = struct{}{}
	}
	return m
}

package app

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/perseo-cms/perseo/internal/shared"
)

// LocaleResolver validates the {locale} path segment against the configured
// locales and picks a default from Accept-Language.
type LocaleResolver struct {
	codes   []string
	known   map[string]struct{}
	matcher language.Matcher
}

// NewLocaleResolver builds a resolver. The first code is the fallback.
func NewLocaleResolver(codes []string) *LocaleResolver {
	lr := &LocaleResolver{known: make(map[string]struct{}, len(codes))}
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		lr.codes = append(lr.codes, code)
		lr.known[code] = struct{}{}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		lr.codes = []string{"en"}
		lr.known["en"] = struct{}{}
		tags = []language.Tag{language.English}
	}
	lr.matcher = language.NewMatcher(tags)
	return lr
}

// Supported reports whether code is one of the configured locale segments.
func (lr *LocaleResolver) Supported(code string) bool {
	_, ok := lr.known[code]
	return ok
}

// Preferred returns the configured locale best matching the request's
// Accept-Language header.
func (lr *LocaleResolver) Preferred(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return lr.codes[0]
	}
	_, index, confidence := lr.matcher.Match(tags...)
	if confidence == language.No {
		return lr.codes[0]
	}
	return lr.codes[index]
}

// Middleware stores the {locale} URL parameter in the request context and
// answers 404 for unknown locales.
func (lr *LocaleResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "locale")
		if !lr.Supported(code) {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithLocale(r.Context(), code)))
	})
}

package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

// supported lists the locales the product ships messages for; French first
// because the product is French-first.
var supported = []language.Tag{
	language.French,
	language.English,
}

var matcher = language.NewMatcher(supported)

// Locale negotiates the request locale from X-Locale or Accept-Language and
// stores it in the request context.
func Locale(defaultLocale string) func(http.Handler) http.Handler {
	fallback := normalizeLocale(defaultLocale)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := negotiate(r, fallback)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func negotiate(r *http.Request, fallback string) string {
	if v := r.Header.Get("X-Locale"); v != "" {
		if norm := normalizeLocale(v); norm != "" {
			return norm
		}
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		if tags, _, err := language.ParseAcceptLanguage(header); err == nil && len(tags) > 0 {
			_, index, conf := matcher.Match(tags...)
			if conf > language.No {
				base, _ := supported[index].Base()
				return base.String()
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "fr"
}

func normalizeLocale(v string) string {
	tag, err := language.Parse(v)
	if err != nil {
		return ""
	}
	_, index, conf := matcher.Match(tag)
	if conf == language.No {
		return ""
	}
	base, _ := supported[index].Base()
	return base.String()
}

// LocaleFromContext returns the negotiated locale, defaulting to French.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok && v != "" {
		return v
	}
	return "fr"
}

package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Mock Interview" {
		t.Errorf("T(AppTitle) = %q, want 'Mock Interview'", got)
	}
	if got := T(ctx, "AllTestsPassed"); got != "All tests passed!" {
		t.Errorf("T(AllTestsPassed) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "AppTitle"); got != "Пробное собеседование" {
		t.Errorf("T(AppTitle) = %q, want 'Пробное собеседование'", got)
	}
	if got := T(ctx, "Failed"); got != "Не пройден" {
		t.Errorf("T(Failed) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{"en", 1, "1 attempt"},
		{"en", 5, "5 attempts"},
		{"ru", 1, "1 попытка"},
		{"ru", 3, "3 попытки"},
		{"ru", 5, "5 попыток"},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := Tp(ctx, "Attempts", tt.count); got != tt.want {
			t.Errorf("Tp(%s, Attempts, %d) = %q, want %q", tt.lang, tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "TestsPassedSummary", map[string]any{"Passed": 2, "Total": 3})
	if got != "2/3 tests passed" {
		t.Errorf("Td(TestsPassedSummary) = %q, want '2/3 tests passed'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestSupported(t *testing.T) {
	initLang(t, "en")
	for _, l := range []string{"en", "ru"} {
		if !Supported(l) {
			t.Errorf("Supported(%q) = false", l)
		}
	}
	if Supported("fr") || Supported("not a tag!") {
		t.Error("unexpected supported language")
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Output")
	}))

	tests := []struct {
		name   string
		url    string
		accept string
		want   string
	}{
		{"default", "/", "", "Output"},
		{"accept-language", "/", "ru-RU,ru;q=0.9,en;q=0.8", "Вывод"},
		{"query wins", "/?lang=en", "ru", "Output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("T(Output) = %q, want %q", got, tt.want)
			}
		})
	}
}

package monitor

import (
	"strings"
	"testing"
)

func TestExtractTextPrefersMainContainer(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<nav>Home | Products | About</nav>
		<main>
			<h1>Model X200</h1>
			<p>Precision measurement for the field.</p>
		</main>
		<footer>Copyright</footer>
	</body></html>`

	got := ExtractText(page)
	if got != "Model X200\nPrecision measurement for the field." {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractTextContentClassFallback(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<div class="sidebar">Ads</div>
		<div class="main-content">
			<h2>Pricing</h2>
			<p>From $499</p>
		</div>
	</body></html>`

	got := ExtractText(page)
	if got != "Pricing\nFrom $499" {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractTextBodyFallbackStripsChrome(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>ignored</title><style>p{color:red}</style></head><body>
		<script>trackVisitor();</script>
		<p>Visible text</p>
		<aside>Related links</aside>
		<noscript>Enable JS</noscript>
	</body></html>`

	got := ExtractText(page)
	if got != "Visible text" {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractTextBlockElementsBecomeLines(t *testing.T) {
	t.Parallel()

	page := `<html><body><main><ul><li>One</li><li>Two</li></ul><p>Three</p></main></body></html>`

	got := ExtractText(page)
	want := "One\nTwo\nThree"
	if got != want {
		t.Fatalf("extraction = %q, want %q", got, want)
	}
}

func TestExtractTextDeterministicAcrossMarkupNoise(t *testing.T) {
	t.Parallel()

	a := `<html><body><main><p class="lead" data-x="1">Same content</p></main></body></html>`
	b := "<html><body>\n  <main>\n    <p data-x=\"1\"   class=\"lead\">Same content</p>\n  </main>\n</body></html>"

	textA := ExtractText(a)
	textB := ExtractText(b)
	if textA != textB {
		t.Fatalf("extraction differs across markup noise: %q vs %q", textA, textB)
	}
	if Hash(textA) != Hash(textB) {
		t.Fatal("hash differs across markup noise")
	}
}

func TestExtractTextMalformedInput(t *testing.T) {
	t.Parallel()

	got := ExtractText("<main><p>unclosed")
	if got != "unclosed" {
		t.Fatalf("unexpected extraction of malformed markup: %q", got)
	}

	if got := ExtractText(""); got != "" {
		t.Fatalf("empty input should extract to empty, got %q", got)
	}
}

func TestExtractTextDropsBlankLines(t *testing.T) {
	t.Parallel()

	page := `<html><body><main>
		<p>   </p>
		<p>First</p>
		<p></p>
		<p>  Second  </p>
	</main></body></html>`

	got := ExtractText(page)
	if got != "First\nSecond" {
		t.Fatalf("unexpected extraction: %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Fatalf("lines should be trimmed: %q", got)
	}
}

package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mindtriage/internal/scoring"
)

func TestRenderWithoutFont(t *testing.T) {
	r := &Renderer{FontPaths: []string{filepath.Join(t.TempDir(), "missing.ttf")}}
	if _, err := r.Render(Document{}); !errors.Is(err, ErrNoFont) {
		t.Fatalf("want ErrNoFont got=%v", err)
	}
	if _, err := (&Renderer{}).Render(Document{}); !errors.Is(err, ErrNoFont) {
		t.Fatalf("no paths: want ErrNoFont got=%v", err)
	}
}

func TestNewRendererOrder(t *testing.T) {
	r := NewRenderer("/opt/fonts/custom.ttf")
	if r.FontPaths[0] != "/opt/fonts/custom.ttf" || len(r.FontPaths) != len(DefaultFontPaths)+1 {
		t.Fatalf("FontPaths: got=%v", r.FontPaths)
	}
	if got := NewRenderer("").FontPaths; len(got) != len(DefaultFontPaths) {
		t.Fatalf("FontPaths without config: got=%v", got)
	}
}

func systemFont(t *testing.T) string {
	t.Helper()
	for _, p := range DefaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("no DejaVu font installed")
	return ""
}

func TestRenderProducesPDF(t *testing.T) {
	r := &Renderer{FontPaths: []string{systemFont(t)}}
	doc := Document{
		SessionID:  "5f1c0c39-7c55-4c8b-9f0e-2d3b1c9a0e11",
		Date:       time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
		Conditions: []string{"depression"},
		Results: []scoring.Result{
			{InstrumentID: "PHQ-9", Name: "Patient Health Questionnaire-9", Total: 12, Category: "Moderate depression"},
			{InstrumentID: "DASS-21", Name: "Depression Anxiety Stress Scales", Subscales: []scoring.SubscaleScore{
				{Name: "depression", Score: 14, Category: "Moderate"},
			}},
		},
		Report: "# Mental Health Assessment Report\n## Date: March 4, 2026\n\n### Recommendations\n- **Talk** to a provider\n" +
			string(bytes.Repeat([]byte("A long paragraph that needs wrapping across the page. "), 200)),
	}
	out, err := r.Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", out[:8])
	}
}

package generation

import (
	"strings"
	"testing"
)

func TestRatingLabel(t *testing.T) {
	cases := map[string]string{
		"1":  "Unsatisfactory",
		"2":  "Needs Improvement",
		"3":  "Meets Expectations",
		"4":  "Exceeds Expectations",
		"5":  "Exceptional",
		"":   "",
		"0":  "",
		"6":  "",
		"05": "",
		"A":  "",
	}
	for code, want := range cases {
		if got := RatingLabel(code); got != want {
			t.Fatalf("RatingLabel(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestBulletsDropsBlankLines(t *testing.T) {
	got := Bullets("  shipped billing \n\n   \nmentored two juniors\n")
	want := []string{"- shipped billing", "- mentored two juniors"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if Bullets("\n \n") != nil {
		t.Fatal("expected no bullets for blank input")
	}
}

func baseParams() Params {
	return Params{
		Employee:     Employee{Name: "Dana Smith", Position: "Engineer", Department: "Platform"},
		ReviewPeriod: "Q1 2025",
		ReviewerName: "Morgan Lee",
		Strengths:    "Led the migration\nImproved on-call",
		Improvements: "Delegate more",
		Tone:         "encouraging",
	}
}

func TestBuildUserPromptEmbedsInputs(t *testing.T) {
	p := baseParams()
	p.Rating = "4"
	p.AdditionalComments = "Promoted in March"
	prompt := BuildUserPrompt(p)

	for _, want := range []string{
		"Employee Name: Dana Smith",
		"Role/Job Title: Engineer",
		"Department: Platform",
		"Review Period: Q1 2025",
		"Manager's Name: Morgan Lee",
		"- Led the migration\n- Improved on-call",
		"Areas for Improvement:\n- Delegate more",
		"Tone Preference: Encouraging",
		"Overall Performance Rating: Exceeds Expectations",
		"Additional Context:\nPromoted in March",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.HasSuffix(prompt, "Format your response in Markdown.\n") {
		t.Fatal("expected markdown instruction at the end")
	}
}

func TestBuildUserPromptOmitsUnmappedRating(t *testing.T) {
	for _, code := range []string{"", "7", "excellent"} {
		p := baseParams()
		p.Rating = code
		prompt := BuildUserPrompt(p)
		if strings.Contains(prompt, "Overall Performance Rating") {
			t.Fatalf("rating %q should omit the rating line:\n%s", code, prompt)
		}
		if strings.Contains(prompt, "Additional Context") {
			t.Fatal("empty comments should omit the context block")
		}
	}
}

package examgen

import (
	"reflect"
	"testing"
)

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "what causes hypertension", "what causes hypertension", 1},
		{"case insensitive", "Hypertension", "hypertension", 1},
		{"both empty", "", "", 1},
		{"one empty", "hypertension", "", 0},
		{"single edit", "abcd", "abxd", 0.75},
		{"disjoint", "aaaa", "bbbb", 0},
	}
	for _, tt := range tests {
		got := similarityRatio(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("%s: similarityRatio(%q, %q) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarityRatioSymmetric(t *testing.T) {
	a := "Which drug class is first-line therapy for chronic hypertension?"
	b := "What is the mechanism of beta blockers in heart failure?"
	if similarityRatio(a, b) != similarityRatio(b, a) {
		t.Errorf("similarityRatio is not symmetric for %q and %q", a, b)
	}
}

func TestExtractDomainTerms(t *testing.T) {
	text := "In a patient with Hypertension and COPD, which ECG finding suggests severe Tachycardia?"
	got := extractDomainTerms(text)
	want := []string{"Hypertension", "Tachycardia"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractDomainTerms(%q) = %v, want %v", text, got, want)
	}
}

func TestExtractDomainTermsSkipsShortAndLowercase(t *testing.T) {
	if terms := extractDomainTerms("the quick brown fox runs fast"); len(terms) != 0 {
		t.Errorf("expected no terms from lowercase text, got %v", terms)
	}
	if terms := extractDomainTerms("ECG ABC In The"); len(terms) != 0 {
		t.Errorf("expected no terms from short words, got %v", terms)
	}
}

func TestJaccard(t *testing.T) {
	a := termSet("Hypertension Tachycardia Bradycardia findings")
	b := termSet("Hypertension Tachycardia outcomes")
	// intersection 2, union 3
	if got, want := jaccard(a, b), 2.0/3.0; got != want {
		t.Errorf("jaccard = %v, want %v", got, want)
	}
	if got := jaccard(nil, a); got != 0 {
		t.Errorf("jaccard with empty set = %v, want 0", got)
	}
	if got := jaccard(nil, nil); got != 0 {
		t.Errorf("jaccard of two empty sets = %v, want 0", got)
	}
}

func TestTermSetLowercases(t *testing.T) {
	set := termSet("Hypertension HYPERTENSION")
	if len(set) != 1 {
		t.Fatalf("expected case-folded set of 1 term, got %v", set)
	}
	if _, ok := set["hypertension"]; !ok {
		t.Errorf("expected lowercased key, got %v", set)
	}
}

func TestTopDomainTerms(t *testing.T) {
	texts := []string{
		"What defines Hypertension in adults?",
		"How does Hypertension interact with Diabetes?",
		"Which test confirms Diabetes and Anemia?",
	}
	got := topDomainTerms(texts, 2)
	// Hypertension and Diabetes both appear twice; the tie resolves
	// alphabetically on the lowercased key.
	want := []string{"Diabetes", "Hypertension"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("topDomainTerms = %v, want %v", got, want)
	}
}

func TestTopDomainTermsLimit(t *testing.T) {
	got := topDomainTerms([]string{"Anemia Diabetes Hypertension Sepsis Stroke Asthma questions"}, 3)
	if len(got) != 3 {
		t.Errorf("expected 3 terms, got %v", got)
	}
	if got := topDomainTerms(nil, 5); len(got) != 0 {
		t.Errorf("expected no terms for empty input, got %v", got)
	}
}

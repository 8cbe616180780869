package transcript_test

import (
	"strings"
	"testing"

	"github.com/mockview/mockview/internal/transcript"
)

func TestCorrectSingleWordEntity(t *testing.T) {
	t.Parallel()

	c := transcript.New()
	got := c.Correct("why do you want to work at ackme", []string{"Acme", "Backend Engineer"})
	if got != "why do you want to work at Acme" {
		t.Errorf("got %q", got)
	}
}

func TestCorrectMultiWordEntity(t *testing.T) {
	t.Parallel()

	c := transcript.New()
	got := c.Correct(
		"tell me about your side reliability engineer experience",
		[]string{"Site Reliability Engineer"},
	)
	if got != "tell me about your Site Reliability Engineer experience" {
		t.Errorf("got %q", got)
	}
}

func TestCorrectPreservesTrailingPunctuation(t *testing.T) {
	t.Parallel()

	c := transcript.New()
	got := c.Correct("have you heard of ackme?", []string{"Acme"})
	if got != "have you heard of Acme?" {
		t.Errorf("got %q", got)
	}
}

func TestCorrectLeavesUnrelatedTextAlone(t *testing.T) {
	t.Parallel()

	c := transcript.New()
	in := "describe a difficult bug you solved recently"
	if got := c.Correct(in, []string{"Acme", "Kubernetes"}); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestCorrectAlreadyCanonicalIsUntouched(t *testing.T) {
	t.Parallel()

	c := transcript.New()
	in := "why Acme and why now"
	got, corrections := c.CorrectDetailed(in, []string{"Acme"})
	if got != in {
		t.Errorf("got %q, want unchanged", got)
	}
	if len(corrections) != 0 {
		t.Errorf("corrections = %+v, want none", corrections)
	}
}

func TestCorrectNoEntities(t *testing.T) {
	t.Parallel()

	c := transcript.New()
	in := "anything at all"
	if got := c.Correct(in, nil); got != in {
		t.Errorf("got %q", got)
	}
	if got := c.Correct(in, []string{"", "  "}); got != in {
		t.Errorf("blank entities: got %q", got)
	}
}

func TestCorrectDetailedReportsReplacements(t *testing.T) {
	t.Parallel()

	c := transcript.New()
	got, corrections := c.CorrectDetailed(
		"my postgris experience at ackme",
		[]string{"PostgreSQL", "Acme"},
	)
	if !strings.Contains(got, "PostgreSQL") || !strings.Contains(got, "Acme") {
		t.Fatalf("got %q", got)
	}
	if len(corrections) != 2 {
		t.Fatalf("corrections = %+v, want 2", corrections)
	}
	for _, corr := range corrections {
		if corr.Confidence <= 0 {
			t.Errorf("correction %+v has no confidence", corr)
		}
	}
}

func TestFuzzyThresholdRejectsWeakMatches(t *testing.T) {
	t.Parallel()

	// With an impossibly high bar nothing matches.
	c := transcript.New(
		transcript.WithPhoneticThreshold(1.01),
		transcript.WithFuzzyThreshold(1.01),
	)
	in := "why do you want to work at ackme"
	if got := c.Correct(in, []string{"Acme"}); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}

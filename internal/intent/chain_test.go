package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"sportsreport-bot/internal/sports"
)

func failing(err error) Extractor {
	return ExtractorFunc(func(context.Context, string, Snapshot) (Intent, error) {
		return nil, err
	})
}

func TestFailbackUsesNextExtractor(t *testing.T) {
	f := Failback{
		failing(errors.New("model down")),
		NewRuleExtractor(sports.Default()),
	}
	got, err := f.Extract(context.Background(), "hello", Snapshot{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, ok := got.(Unrelated); !ok {
		t.Fatalf("got %#v want Unrelated", got)
	}
}

func TestFailbackAfterSlowModel(t *testing.T) {
	slow, err := NewModelExtractor(&fakeChatModel{args: `{"kind":"ambiguous"}`, delay: time.Second}, sports.Default())
	if err != nil {
		t.Fatalf("NewModelExtractor: %v", err)
	}
	f := Failback{WithTimeout(slow, 10*time.Millisecond), NewRuleExtractor(sports.Default())}
	got, err := f.Extract(context.Background(), "maria@gmail.com", Snapshot{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if a, ok := got.(FieldAnswer); !ok || a.Value != "maria@gmail.com" {
		t.Fatalf("got %#v want email answer from rules", got)
	}
}

func TestFailbackAllFail(t *testing.T) {
	boom := errors.New("boom")
	_, err := Failback{failing(boom), failing(boom)}.Extract(context.Background(), "x", Snapshot{})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if _, err := (Failback{}).Extract(context.Background(), "x", Snapshot{}); !errors.Is(err, ErrNoExtractor) {
		t.Fatalf("err=%v want ErrNoExtractor", err)
	}
}

func TestSafeTurnsFailuresIntoAmbiguous(t *testing.T) {
	slow, err := NewModelExtractor(&fakeChatModel{args: `{"kind":"unrelated"}`, delay: time.Second}, sports.Default())
	if err != nil {
		t.Fatalf("NewModelExtractor: %v", err)
	}

	var failures int
	cases := []struct {
		name string
		e    Extractor
	}{
		{name: "error", e: failing(errors.New("boom"))},
		{name: "nil intent", e: ExtractorFunc(func(context.Context, string, Snapshot) (Intent, error) { return nil, nil })},
		{name: "timeout", e: slow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Safe{Extractor: tc.e, Timeout: 20 * time.Millisecond, OnFailure: func(error) { failures++ }}
			got, err := s.Extract(context.Background(), "hello", Snapshot{})
			if err != nil {
				t.Fatalf("Safe returned error %v", err)
			}
			if a, ok := got.(Ambiguous); !ok || a.Reason != ReasonExtractionFailed {
				t.Fatalf("got %#v want extraction_failed", got)
			}
		})
	}
	if failures != len(cases) {
		t.Fatalf("OnFailure called %d times want %d", failures, len(cases))
	}
}

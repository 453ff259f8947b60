package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"newsdesk/types"

	cohere "github.com/cohere-ai/cohere-go/v2"
	"github.com/cohere-ai/cohere-go/v2/option"
)

func TestSegmenter(t *testing.T) {
	s, err := NewSegmenter()
	if err != nil {
		t.Fatal(err)
	}
	got := s.Segment("Tesla announced a new plant. Analysts were surprised!  Shares rose 3%.")
	want := []string{"Tesla announced a new plant.", "Analysts were surprised!", "Shares rose 3%."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Segment = %q; want %q", got, want)
	}
	if got := s.Segment("   \n "); len(got) != 0 {
		t.Fatalf("blank text segmented into %q", got)
	}
}

func TestParseLabel(t *testing.T) {
	for in, want := range map[string]types.Label{"Positive": types.LabelPositive, " negative ": types.LabelNegative, "NEUTRAL": types.LabelNeutral} {
		got, err := ParseLabel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLabel(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseLabel("bullish"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestHTTPClassifier(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" || r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected request %s %v", r.URL.Path, r.Header)
		}
		var req classifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(status)
		if status == http.StatusOK {
			label := "neutral"
			if req.Text == "Profits soared." {
				label = "POSITIVE"
			}
			json.NewEncoder(w).Encode(classifyResponse{Label: label, Score: 0.9})
		}
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL+"/", "k", 0)
	ctx := context.Background()

	if l, err := c.Classify(ctx, "Profits soared."); err != nil || l != types.LabelPositive {
		t.Fatalf("Classify = %q, %v", l, err)
	}

	status = http.StatusServiceUnavailable
	if _, err := c.Classify(ctx, "x"); err == nil || types.IsFatal(err) {
		t.Fatalf("503 err = %v; want retryable", err)
	}
	status = http.StatusBadRequest
	if _, err := c.Classify(ctx, "x"); !types.IsFatal(err) {
		t.Fatalf("400 err = %v; want fatal", err)
	}
}

type fakeCohere struct {
	req  *cohere.ClassifyRequest
	resp *cohere.ClassifyResponse
}

func (f *fakeCohere) Classify(ctx context.Context, req *cohere.ClassifyRequest, opts ...option.RequestOption) (*cohere.ClassifyResponse, error) {
	f.req = req
	return f.resp, nil
}

func TestCohereClassifier(t *testing.T) {
	pred := "negative"
	fake := &fakeCohere{resp: &cohere.ClassifyResponse{
		Classifications: []*cohere.ClassifyResponseClassificationsItem{{Prediction: &pred}},
	}}
	c := newCohereClassifier(fake, "embed-english-v3.0")

	l, err := c.Classify(context.Background(), "Tesla recalled its cars.")
	if err != nil || l != types.LabelNegative {
		t.Fatalf("Classify = %q, %v", l, err)
	}
	if len(fake.req.Inputs) != 1 || len(fake.req.Examples) != 9 {
		t.Fatalf("request = %d inputs, %d examples", len(fake.req.Inputs), len(fake.req.Examples))
	}
	if *fake.req.Model != "embed-english-v3.0" {
		t.Fatalf("model = %q", *fake.req.Model)
	}

	fake.resp = &cohere.ClassifyResponse{}
	if _, err := c.Classify(context.Background(), "x"); err == nil {
		t.Fatal("expected error on empty response")
	}
}

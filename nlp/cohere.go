package nlp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"newsdesk/types"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
)

type classifyAPI interface {
	Classify(ctx context.Context, request *cohere.ClassifyRequest, opts ...option.RequestOption) (*cohere.ClassifyResponse, error)
}

// CohereClassifier labels sentences with Cohere's few-shot classify endpoint
type CohereClassifier struct {
	client   classifyAPI
	model    string
	examples []*cohere.ClassifyExample
}

// sentimentExamples seeds the few-shot classifier with financial news sentences
var sentimentExamples = map[types.Label][]string{
	types.LabelPositive: {
		"Shares jumped after the company beat quarterly earnings estimates.",
		"The firm announced record revenue and raised its full-year outlook.",
		"Investors welcomed the merger, sending the stock to an all-time high.",
	},
	types.LabelNegative: {
		"The company cut its forecast and shares fell sharply.",
		"Regulators opened an investigation into the bank's lending practices.",
		"The automaker recalled thousands of vehicles over a braking defect.",
	},
	types.LabelNeutral: {
		"The company will report its results on Thursday.",
		"The meeting is scheduled to take place in Berlin next month.",
		"The board consists of nine members.",
	},
}

func NewCohereClassifier(apiKey, model string, timeout time.Duration) *CohereClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return newCohereClassifier(client, model)
}

func newCohereClassifier(client classifyAPI, model string) *CohereClassifier {
	var examples []*cohere.ClassifyExample
	for _, label := range []types.Label{types.LabelPositive, types.LabelNegative, types.LabelNeutral} {
		for _, text := range sentimentExamples[label] {
			text, l := text, string(label)
			examples = append(examples, &cohere.ClassifyExample{Text: &text, Label: &l})
		}
	}
	return &CohereClassifier{client: client, model: model, examples: examples}
}

func (c *CohereClassifier) Classify(ctx context.Context, sentence string) (types.Label, error) {
	req := &cohere.ClassifyRequest{
		Inputs:   []string{sentence},
		Examples: c.examples,
	}
	if c.model != "" {
		req.Model = &c.model
	}
	resp, err := c.client.Classify(ctx, req)
	if err != nil {
		return "", fmt.Errorf("cohere classify error: %w", err)
	}
	if resp == nil || len(resp.Classifications) == 0 || resp.Classifications[0] == nil {
		return "", errors.New("cohere classify returned no classifications")
	}
	item := resp.Classifications[0]
	switch {
	case item.Prediction != nil:
		return ParseLabel(*item.Prediction)
	case len(item.Predictions) > 0:
		return ParseLabel(item.Predictions[0])
	}
	return "", errors.New("cohere classify returned no prediction")
}

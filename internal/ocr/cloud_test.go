package ocr

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

type fakeGenerator struct {
	text     string
	logprobs float64
	err      error
	gotMIME  string
	gotModel string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	for _, part := range contents[0].Parts {
		if part.InlineData != nil {
			f.gotMIME = part.InlineData.MIMEType
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:     &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.text}}},
			AvgLogprobs: f.logprobs,
		}},
	}, nil
}

func TestCloudProvider_Image(t *testing.T) {
	gen := &fakeGenerator{text: "01/02/2024 DIRECT DEPOSIT PAYROLL 3,500.00 +", logprobs: math.Log(0.9)}
	p := NewCloudProvider(Config{CloudModel: "gemini-test"}, gen, nil)

	res, err := p.Extract(context.Background(), Document{Data: []byte("img"), MIME: "image/jpeg", Format: constants.IMAGE})
	require.NoError(t, err)
	assert.Equal(t, "01/02/2024 DIRECT DEPOSIT PAYROLL 3,500.00 +", res.Text)
	assert.Equal(t, "image/jpeg", gen.gotMIME)
	assert.Equal(t, "gemini-test", gen.gotModel)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.9, *res.Confidence, 0.001)
}

func TestCloudProvider_NoConfidenceReported(t *testing.T) {
	p := NewCloudProvider(Config{}, &fakeGenerator{text: "hello"}, nil)

	res, err := p.Extract(context.Background(), Document{Data: []byte("%PDF"), MIME: "application/pdf", Format: constants.PDF})
	require.NoError(t, err)
	assert.Nil(t, res.Confidence)
}

func TestCloudProvider_Unconfigured(t *testing.T) {
	p := NewCloudProvider(Config{}, nil, nil)

	_, err := p.Extract(context.Background(), Document{Format: constants.IMAGE})
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}

func TestCloudProvider_Errors(t *testing.T) {
	t.Run("quota is unavailable", func(t *testing.T) {
		p := NewCloudProvider(Config{}, &fakeGenerator{err: genai.APIError{Code: 429, Message: "quota"}}, nil)
		_, err := p.Extract(context.Background(), Document{Format: constants.IMAGE, MIME: "image/png"})
		assert.ErrorIs(t, err, common.ErrProviderUnavailable)
	})
	t.Run("other errors are plain failures", func(t *testing.T) {
		p := NewCloudProvider(Config{}, &fakeGenerator{err: errors.New("bad payload")}, nil)
		_, err := p.Extract(context.Background(), Document{Format: constants.IMAGE, MIME: "image/png"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrProviderUnavailable)
	})
}

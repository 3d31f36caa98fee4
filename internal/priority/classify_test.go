package priority

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modscout/modscout/pkg/anthropic"
)

type fakeAI struct {
	reply string
	err   error
}

func (f *fakeAI) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}},
	}, nil
}

type fakeNotion struct {
	page *notionapi.Page
	err  error
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, _ *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return nil, eris.New("not used")
}

func (f *fakeNotion) GetPage(_ context.Context, _ string) (*notionapi.Page, error) {
	return f.page, f.err
}

func TestClassify(t *testing.T) {
	ai := &fakeAI{reply: `{"removal_impact": 3, "framework": 2, "essential": 2, "code": "6F"}`}
	c := NewClassifier(&fakeNotion{}, ai, "test-model")

	cls, err := c.Classify(context.Background(), "MCCC", "core framework, many dependents")
	require.NoError(t, err)

	assert.Equal(t, 1, cls.Priority)
	assert.Equal(t, 7.0, cls.Score)
	assert.Equal(t, "6F", cls.CategoryCode)
	assert.Equal(t, "Utility & Frameworks", cls.CategoryLabel)
}

func TestClassify_UnknownCodeFallsBack(t *testing.T) {
	ai := &fakeAI{reply: `{"removal_impact": 0, "framework": 0, "essential": 1, "code": "7G"}`}
	c := NewClassifier(&fakeNotion{}, ai, "test-model")

	cls, err := c.Classify(context.Background(), "Tiny Tweak", "")
	require.NoError(t, err)

	assert.Equal(t, 0, cls.Priority)
	assert.Equal(t, "0X", cls.CategoryCode)
	assert.Equal(t, "Uncategorized", cls.CategoryLabel)
}

func TestClassify_ModelError(t *testing.T) {
	c := NewClassifier(&fakeNotion{}, &fakeAI{err: eris.New("rate limited")}, "test-model")

	_, err := c.Classify(context.Background(), "MCCC", "")
	assert.Error(t, err)
}

func TestClassifyPage(t *testing.T) {
	page := &notionapi.Page{
		ID: "page-1",
		Properties: notionapi.Properties{
			"Name":  &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: "Cool Mod"}}},
			"Notes": &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "keeps saves stable"}}},
		},
	}
	ai := &fakeAI{reply: `{"removal_impact": 1, "framework": 1, "essential": 1, "code": "1A"}`}
	c := NewClassifier(&fakeNotion{page: page}, ai, "test-model")

	cls, err := c.ClassifyPage(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Equal(t, 3, cls.Priority)
	assert.Equal(t, "1A", cls.CategoryCode)
}

func TestClassifyPage_NoTitle(t *testing.T) {
	page := &notionapi.Page{ID: "page-2", Properties: notionapi.Properties{}}
	c := NewClassifier(&fakeNotion{page: page}, &fakeAI{}, "test-model")

	_, err := c.ClassifyPage(context.Background(), "page-2")
	assert.Error(t, err)
}

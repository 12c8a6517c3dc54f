package biz

import (
	"strings"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/utils/json"
	"github.com/kart-io/sensei/pkg/utils/textutil"
)

type classifierReply struct {
	Category      string `json:"category"`
	EnhancedQuery string `json:"enhanced_query"`
}

// parseClassifierReply extracts the category and enhanced query from a
// classifier response. Models often wrap the object in code fences or prose,
// so the text between the first '{' and the last '}' is decoded.
// An empty enhanced query falls back to the prompt.
func parseClassifierReply(raw, prompt string) (model.Category, string, error) {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return 0, "", errors.ErrClassification.WithMessagef("classifier reply is not JSON: %q", textutil.TruncateString(raw, 200))
	}

	var reply classifierReply
	if err := json.Unmarshal([]byte(s[start:end+1]), &reply); err != nil {
		return 0, "", errors.ErrClassification.WithMessagef("classifier reply is not JSON: %q", textutil.TruncateString(raw, 200)).WithCause(err)
	}
	if strings.TrimSpace(reply.Category) == "" {
		return 0, "", errors.ErrClassification.WithMessage("classifier reply has no category")
	}

	c, err := model.ParseCategory(reply.Category)
	if err != nil {
		return 0, "", errors.ErrClassification.WithMessagef("classifier returned unknown category %q", reply.Category).WithCause(err)
	}

	enhanced := strings.TrimSpace(reply.EnhancedQuery)
	if enhanced == "" {
		enhanced = strings.TrimSpace(prompt)
	}
	return c, enhanced, nil
}

// EnhancedQuery is the deterministic rewrite used when no model is called.
func EnhancedQuery(prompt string) string {
	return textutil.CollapseSpaces(prompt)
}

package biz

import (
	"regexp"
	"strings"

	"github.com/kart-io/sensei/internal/model"
)

// Route names the path that resolved a classification.
type Route string

const (
	// RouteCache resolves from a stored record, no model call.
	RouteCache Route = "cache"
	// RouteHeuristic resolves from a deterministic fast-path rule.
	RouteHeuristic Route = "heuristic"
	// RouteModel requires a classifier call.
	RouteModel Route = "model"
)

// Decision is the tagged result of Decide. Category is set for RouteCache
// and RouteHeuristic, Prompt for RouteModel.
type Decision struct {
	Route    Route
	Category model.Category
	Prompt   string
}

// FastPathFunc classifies prompts that need no model.
type FastPathFunc func(prompt string) (model.Category, bool)

// Decide picks the classification path. A stored record always wins, so a
// correction overrides the fast-path rules as well as the model.
func Decide(rec *model.ClassificationRecord, prompt string, fastPath FastPathFunc) Decision {
	if rec != nil && rec.Category.Valid() {
		return Decision{Route: RouteCache, Category: rec.Category}
	}
	if fastPath != nil {
		if c, ok := fastPath(prompt); ok {
			return Decision{Route: RouteHeuristic, Category: c}
		}
	}
	return Decision{Route: RouteModel, Prompt: prompt}
}

var (
	scanTarget  = regexp.MustCompile(`^scan\s.*\d`)
	checkSystem = regexp.MustCompile(`\bcheck\s+(disk|memory|ram)\b`)
)

var systemCommands = []string{"uptime", "whoami", "df -h", "free -h"}

// FastPath routes tool-style requests without a model call.
func FastPath(prompt string) (model.Category, bool) {
	p := model.Normalize(prompt)
	if strings.Contains(p, "nmap") || scanTarget.MatchString(p) {
		return model.Action, true
	}
	for _, cmd := range systemCommands {
		if strings.Contains(p, cmd) {
			return model.System, true
		}
	}
	if checkSystem.MatchString(p) {
		return model.System, true
	}
	return 0, false
}

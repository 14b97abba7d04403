package domain

import "strings"

// Classification tags one work item with its planning category.
type Classification string

// Classification values.
const (
	ClassEssential    Classification = "essential"
	ClassImprovement  Classification = "improvement"
	ClassEnhancement  Classification = "enhancement"
	ClassOptimization Classification = "optimization"
)

// classificationWeights stores the base selection weight per classification.
var classificationWeights = map[Classification]float64{
	ClassEssential:    1.0,
	ClassImprovement:  0.7,
	ClassEnhancement:  0.5,
	ClassOptimization: 0.3,
}

// Weight returns the base selection weight for the classification.
func (c Classification) Weight() float64 {
	if w, ok := classificationWeights[c]; ok {
		return w
	}
	return classificationWeights[ClassImprovement]
}

// IsDeferrable reports whether the classification is excluded under release sprint.
func (c Classification) IsDeferrable() bool {
	return c == ClassEnhancement || c == ClassOptimization
}

// classificationRule matches labels/title keywords (and optionally urgent
// priority) to one classification. Rules are evaluated in table order; the
// first match wins and improvement is the fallback.
type classificationRule struct {
	class          Classification
	keywords       []string
	urgentPriority bool
}

// classificationRules is the ordered rule table. Order is part of the
// classification contract: essential outranks enhancement outranks
// optimization; improvement keywords only matter as documentation since
// improvement is also the fallback.
var classificationRules = []classificationRule{
	{
		class:          ClassEssential,
		keywords:       []string{"critical", "blocker", "mvp", "core", "security", "bug"},
		urgentPriority: true,
	},
	{
		class:    ClassEnhancement,
		keywords: []string{"feature", "add", "implement", "create"},
	},
	{
		class:    ClassOptimization,
		keywords: []string{"refactor", "optimize", "performance", "technical-debt", "tech-debt", "cleanup"},
	},
	{
		class:    ClassImprovement,
		keywords: []string{"improve", "enhance", "update"},
	},
}

// matches reports whether the rule applies to the item.
func (r classificationRule) matches(item WorkItem) bool {
	if r.urgentPriority && item.Priority <= PriorityHigh {
		return true
	}
	title := strings.ToLower(item.Title)
	for _, kw := range r.keywords {
		if item.HasLabel(kw) {
			return true
		}
		if containsWord(title, kw) {
			return true
		}
	}
	return false
}

// Classify tags one work item by evaluating the rule table top-down.
func Classify(item WorkItem) Classification {
	for _, rule := range classificationRules {
		if rule.matches(item) {
			return rule.class
		}
	}
	return ClassImprovement
}

// containsWord reports whether text contains the keyword as a whole word.
func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		leftOK := start == 0 || !isWordChar(text[start-1])
		rightOK := end == len(text) || !isWordChar(text[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

// isWordChar reports whether b continues a word token.
func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '-' || b == '_'
}

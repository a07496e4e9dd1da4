package views

import (
	"github.com/OSCARNAR2018/asado-tracker/event"
)

type RuleItem struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type RulesState struct {
	View  string     `json:"view"`
	Title string     `json:"title"`
	Rules []RuleItem `json:"rules"`
	Note  string     `json:"note"`
}

// Rules is static; it does not depend on the mode.
func Rules(e *event.Event) RulesState {
	items := make([]RuleItem, 0, len(e.Rules))
	for i, r := range e.Rules {
		items = append(items, RuleItem{Number: i + 1, Title: r.Title, Description: r.Description})
	}

	return RulesState{
		View:  "rules",
		Title: "Reglas de Oro",
		Rules: items,
		Note:  e.Note,
	}
}

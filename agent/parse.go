package agent

import (
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
)

// Directive is one parsed model reply: either a tool dispatch (Action +
// ActionInput) or a direct answer (Action "respond" or Response set)
type Directive struct {
	Thought     string                 `json:"thought"`
	Action      string                 `json:"action,omitempty"`
	ActionInput map[string]interface{} `json:"action_input,omitempty"`
	Response    string                 `json:"response,omitempty"`
}

// Respond reports whether the directive ends the turn
func (d *Directive) Respond() bool {
	return d.Action == "respond" || d.Response != ""
}

var jsonFence = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)\\n?```")

// parseDirective extracts the directive from a model reply. A fenced
// json block wins over the whole reply; broken JSON goes through one
// repair pass. A reply that is not JSON at all becomes a direct
// response, never an error.
func parseDirective(reply string) *Directive {
	if match := jsonFence.FindStringSubmatch(reply); match != nil {
		if directive := unmarshalDirective(strings.TrimSpace(match[1])); directive != nil {
			return directive
		}
	}

	if directive := unmarshalDirective(strings.TrimSpace(reply)); directive != nil {
		return directive
	}

	return &Directive{
		Thought:  "Responding directly",
		Action:   "respond",
		Response: reply,
	}
}

// unmarshalDirective parses one candidate JSON object, retrying through
// jsonrepair for the trailing commas and unquoted keys models produce
func unmarshalDirective(data string) *Directive {
	if !strings.HasPrefix(data, "{") {
		return nil
	}

	var directive Directive
	if err := jsoniter.UnmarshalFromString(data, &directive); err != nil {
		repaired, errRepair := jsonrepair.JSONRepair(data)
		if errRepair != nil {
			return nil
		}
		if err := jsoniter.UnmarshalFromString(repaired, &directive); err != nil {
			return nil
		}
	}

	// An object with none of the directive fields is prose that merely
	// looked like JSON
	if directive.Thought == "" && directive.Action == "" && directive.Response == "" {
		return nil
	}
	return &directive
}

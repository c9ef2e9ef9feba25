package gateway

import (
	"encoding/json"
	"fmt"
)

// ResultSet is the structured form of a successful execution: column
// metadata plus row values rendered as text.
type ResultSet struct {
	Fields []string   `json:"fields"`
	Rows   [][]string `json:"rows"`
}

// Outcome is the discriminated result of a gateway run. Exactly one of
// Result and ErrText is populated: Result for a successful execution,
// ErrText for a refusal or a database error captured as data.
type Outcome struct {
	Result  *ResultSet
	ErrText string
	// Refused marks policy rejections, as opposed to errors the
	// database itself reported. Refusals are terminal: the repair loop
	// must not attempt to correct them.
	Refused bool
}

// Failed reports whether the outcome carries an error instead of a
// result set.
func (o Outcome) Failed() bool {
	return o.Result == nil
}

// Serialize renders the outcome as the single text payload the chat
// collaborator consumes: JSON for a result set, the plain error text
// otherwise.
func (o Outcome) Serialize() string {
	if o.Result == nil {
		return o.ErrText
	}
	data, err := json.Marshal(o.Result)
	if err != nil {
		return fmt.Sprintf("failed to serialize result: %v", err)
	}
	return string(data)
}

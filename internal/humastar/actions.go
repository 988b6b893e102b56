package humastar

import "strings"

// Action is a state-dependent hypermedia action, emitted as an RFC 8288
// Link header with method, title and schema extension parameters:
//
//	</api/v1/types/delete>; rel="delete"; method="POST"; title="Delete type"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	Schema string
}

// Actor is implemented by response bodies that provide state-dependent actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	b.WriteString("<" + a.Href + `>; rel="` + a.Rel + `"`)
	param := func(name, value string) {
		if value != "" {
			b.WriteString("; " + name + `="` + value + `"`)
		}
	}
	param("method", a.Method)
	param("title", a.Title)
	param("schema", a.Schema)
	return b.String()
}

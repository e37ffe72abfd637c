// Package serving owns the model resolution, caching, and hot-reload
// protocol for the prediction API.
package serving

// Source identifies which fallback path produced the active model.
type Source string

const (
	SourceAlias Source = "alias"
	SourceStage Source = "stage"
	SourceLocal Source = "local"
	SourceNone  Source = "none"
)

// Binding is the resolved association between the logical model name and
// the loaded classifier, with its provenance. LastErrors keeps the error
// from every attempted fallback source, even after a later source succeeds.
type Binding struct {
	Source     Source            `json:"source"`
	Name       string            `json:"name,omitempty"`
	Alias      string            `json:"alias,omitempty"`
	Stage      string            `json:"stage,omitempty"`
	Version    string            `json:"version,omitempty"`
	LastErrors map[string]string `json:"errors,omitempty"`
}

// EmptyBinding is the state before the first resolution and after a failed one.
func EmptyBinding() Binding {
	return Binding{Source: SourceNone, LastErrors: map[string]string{}}
}

// Populated reports whether the binding carries a resolved model.
func (b Binding) Populated() bool {
	return b.Source != SourceNone
}

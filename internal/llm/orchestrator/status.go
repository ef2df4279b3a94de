package orchestrator

import "context"

const statusModelLimit = 5

// ModelRef is a short model reference used in status listings.
type ModelRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProviderStatus summarizes one registered provider.
type ProviderStatus struct {
	Available   bool       `json:"available"`
	Enabled     bool       `json:"enabled"`
	ModelsCount int        `json:"models_count"`
	Models      []ModelRef `json:"models"`
	Error       string     `json:"error,omitempty"`
}

// ProviderStatus probes every registered provider. Only the first five
// models are listed.
func (o *Orchestrator) ProviderStatus(ctx context.Context) map[string]ProviderStatus {
	out := make(map[string]ProviderStatus, o.registry.Len())
	for _, a := range o.registry.All() {
		st := ProviderStatus{Enabled: a.Enabled(), Models: []ModelRef{}}
		st.Available = a.IsAvailable(ctx)
		if st.Available {
			models, err := a.AvailableModels(ctx)
			if err != nil {
				st.Available = false
				st.Error = err.Error()
			}
			st.ModelsCount = len(models)
			for i, m := range models {
				if i == statusModelLimit {
					break
				}
				st.Models = append(st.Models, ModelRef{ID: m.ID, Name: m.Name})
			}
		}
		out[a.Name()] = st
	}
	return out
}

package agent

import (
	"log/slog"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/enrich"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/harvest/oai"
)

// Deps are the services the built-in agents are constructed with.
type Deps struct {
	Records    *record.Service
	Activities *activity.Service
	Harvest    oai.ClientConfig
	Policy     enrich.FailurePolicy
	Logger     *slog.Logger
}

// StandardRegistry registers the OAI harvest agent and the enrichment agent.
func StandardRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := NewRegistry()
	mustRegister(r, Definition{
		Name:        TypeName((*HarvestAgent)(nil)),
		Aliases:     []string{"harvest", "oai"},
		Description: "Harvest an OAI-PMH repository into original records",
		Schema:      oai.Schema(),
		Factory: func(opts harvest.Options) (SoftwareAgent, error) {
			h, err := oai.NewHarvester(opts, deps.Harvest, logger)
			if err != nil {
				return nil, err
			}
			return NewHarvestAgent(h, deps.Records, deps.Activities, logger), nil
		},
	})
	mustRegister(r, Definition{
		Name:        TypeName((*EnrichmentAgent)(nil)),
		Aliases:     []string{"enrich", "enrichment"},
		Description: "Enrich the records an activity generated into aggregations",
		Schema:      EnrichmentSchema(),
		Factory: func(opts harvest.Options) (SoftwareAgent, error) {
			a, err := NewEnrichmentAgentFromOptions(opts, deps.Policy, deps.Activities, deps.Records, deps.Activities, logger)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
	return r
}

func mustRegister(r *Registry, def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

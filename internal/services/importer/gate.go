package importer

import (
	"log"

	"docflow-desktop/internal/api"
)

// MappingSource provides standing folder-name → client-id mappings created by
// resolved import errors
type MappingSource interface {
	MappingFor(folderName string) (string, bool)
}

// Verdict is one cached client existence decision
type Verdict struct {
	Exists   bool
	ClientID string
}

// Gate checks client existence before a group's files are submitted. Each
// client name is checked at most once per job: every file of a group shares
// the same cached verdict. Network errors fail closed (treated as not found).
// A Gate belongs to a single job goroutine and is not safe for concurrent use.
type Gate struct {
	client   *api.Client
	mappings MappingSource
	verdicts map[string]Verdict
}

// NewGate creates a gate for one job
func NewGate(client *api.Client, mappings MappingSource) *Gate {
	return &Gate{
		client:   client,
		mappings: mappings,
		verdicts: make(map[string]Verdict),
	}
}

// Check returns the cached verdict for a client name, resolving it on first use
func (g *Gate) Check(name string) Verdict {
	if verdict, exists := g.verdicts[name]; exists {
		return verdict
	}

	verdict := g.resolve(name)
	g.verdicts[name] = verdict
	return verdict
}

func (g *Gate) resolve(name string) Verdict {
	// A standing folder mapping from a resolved import error wins over the
	// name lookup; the folder name may not match any client name at all.
	if g.mappings != nil {
		if clientID, mapped := g.mappings.MappingFor(name); mapped {
			return Verdict{Exists: true, ClientID: clientID}
		}
	}

	resp, err := g.client.CheckClient(name)
	if err != nil {
		log.Printf("Client check for %q failed, treating as not found: %v", name, err)
		return Verdict{}
	}

	return Verdict{Exists: resp.Exists, ClientID: resp.ClientID}
}

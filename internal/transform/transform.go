// Package transform converts bullet-style key-value annotations found in
// entity documentation into structured metadata: custom properties on the
// documented aspect itself, and tag / glossary term / ownership records
// emitted as additional change proposals.
package transform

import (
	"fmt"
	"log"
	"maps"
	"slices"

	"github.com/dnswlt/docmeta/internal/api"
	"github.com/dnswlt/docmeta/internal/extract"
)

// Transformer processes a stream of record envelopes, one at a time.
// It owns all mutable state accumulated across a run (the side buffer of
// created proposals and the diagnostics) and is not safe for concurrent use.
type Transformer struct {
	cfg       *Config
	extractor *extract.Extractor

	// Side buffer of proposals created across the run, drained by EndOfStream.
	pending []*api.ChangeProposal
	drained bool

	// Diagnostics, see Report.
	processed   map[string]*ProcessedEntity
	aspectsSeen map[string]int
	warnings    []string
}

// ProcessedEntity records which keys matched for an entity and which aspect
// supplied the documentation. Diagnostic data only.
type ProcessedEntity struct {
	Matched map[string]string
	Source  string
}

// Report summarizes a transformer run for operator visibility.
// It is not part of the emitted output.
type Report struct {
	// Processed entities by URN. If an entity was visited more than once,
	// the last visit wins.
	Entities map[string]*ProcessedEntity
	// Number of aspects seen per aspect name (TransformAspect calls only).
	AspectsSeen map[string]int
	// Recoverable anomalies, e.g. unrecognized ownership type tokens.
	Warnings []string
}

// New returns a Transformer for the given configuration.
// cfg is validated (and its defaults populated) as a side effect.
func New(cfg *Config) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var extractor *extract.Extractor
	var err error
	if cfg.Parser == ParserMarkdown {
		extractor, err = extract.NewMarkdown()
	} else {
		extractor, err = extract.New(cfg.KeyValuePattern)
	}
	if err != nil {
		return nil, err
	}
	return &Transformer{
		cfg:         cfg,
		extractor:   extractor,
		processed:   make(map[string]*ProcessedEntity),
		aspectsSeen: make(map[string]int),
	}, nil
}

// EntityKinds returns the entity kinds the transformer applies to.
func EntityKinds() []api.EntityKind {
	return []api.EntityKind{
		api.KindDataset,
		api.KindContainer,
		api.KindDataFlow,
		api.KindDataJob,
		api.KindChart,
		api.KindDashboard,
	}
}

// AspectNames returns the aspect names the transformer operates on.
func AspectNames() []string {
	return []string{
		api.AspectDatasetProperties,
		api.AspectDashboardProperties,
		api.AspectChartProperties,
		api.AspectContainerProperties,
		api.AspectDataFlowProperties,
		api.AspectDataJobProperties,
		api.AspectDatasetSnapshot,
		api.AspectDashboardSnapshot,
		api.AspectChartSnapshot,
		api.AspectContainerSnapshot,
		api.AspectDataFlowSnapshot,
		api.AspectDataJobSnapshot,
		api.AspectGlobalTags,
		api.AspectGlossaryTerms,
		api.AspectOwnership,
	}
}

// Transform processes an ordered sequence of envelopes. The result contains
// all input envelopes in their original order, with any newly created
// proposal envelopes appended directly after the envelope that spawned them.
// Transform never fails: envelopes it cannot interpret pass through unchanged.
func (t *Transformer) Transform(envelopes []*api.Envelope) []*api.Envelope {
	var out []*api.Envelope
	for _, env := range envelopes {
		out = append(out, t.TransformOne(env)...)
	}
	return out
}

// TransformOne processes a single envelope, see Transform.
func (t *Transformer) TransformOne(env *api.Envelope) []*api.Envelope {
	out := []*api.Envelope{env}
	if env == nil || env.Record == nil {
		return out
	}

	// Locate the entity URN and the documentation-bearing aspect.
	var urn string
	var doc api.Documented
	switch rec := env.Record.(type) {
	case *api.ChangeEvent:
		if rec.ProposedSnapshot == nil {
			return out
		}
		urn = rec.ProposedSnapshot.URN
		// Use the first sub-aspect that exposes the documentation field.
		for _, a := range rec.ProposedSnapshot.Aspects {
			if d, ok := a.(api.Documented); ok {
				if _, exposed := d.Documentation(t.cfg.DocumentationField); exposed {
					doc = d
					break
				}
			}
		}
	case *api.ChangeProposal:
		urn = rec.EntityURN
		if d, ok := rec.Aspect.(api.Documented); ok {
			if _, exposed := d.Documentation(t.cfg.DocumentationField); exposed {
				doc = d
			}
		}
	}
	if urn == "" || doc == nil {
		// Nothing to transform.
		return out
	}

	for _, proposal := range t.processDocumented(urn, doc, doc.AspectName()) {
		out = append(out, &api.Envelope{Record: proposal, Metadata: env.Metadata})
	}
	return out
}

// TransformAspect processes a single aspect for the given entity, mutating it
// in place. It returns the aspect unchanged in identity and never errors;
// proposals created for non-property mappings only go to the side buffer.
// Snapshot aspects are scanned for documented sub-aspects.
func (t *Transformer) TransformAspect(entityURN, aspectName string, aspect api.Aspect) api.Aspect {
	t.aspectsSeen[aspectName]++
	if aspect == nil {
		return aspect
	}
	switch a := aspect.(type) {
	case *api.Snapshot:
		for _, sub := range a.Aspects {
			if d, ok := sub.(api.Documented); ok {
				t.processDocumented(entityURN, d, aspectName+"."+d.AspectName())
			}
		}
	default:
		if d, ok := aspect.(api.Documented); ok {
			t.processDocumented(entityURN, d, aspectName)
		}
	}
	return aspect
}

// EndOfStream drains the side buffer of proposals accumulated across the run.
// The buffer is drained exactly once: subsequent calls return nil.
func (t *Transformer) EndOfStream() []*api.ChangeProposal {
	if t.drained {
		return nil
	}
	t.drained = true
	out := t.pending
	t.pending = nil
	return out
}

// Report returns the diagnostics accumulated so far.
func (t *Transformer) Report() *Report {
	return &Report{
		Entities:    maps.Clone(t.processed),
		AspectsSeen: maps.Clone(t.aspectsSeen),
		Warnings:    slices.Clone(t.warnings),
	}
}

// matchedKey is one extracted pair together with its configured mapping.
type matchedKey struct {
	mapping *KeyMapping
	value   string
}

// filterPairs restricts extracted pairs to configured keys, in the order the
// mappings are configured.
func filterPairs(pairs map[string]string, mappings []*KeyMapping) []matchedKey {
	var matched []matchedKey
	for _, m := range mappings {
		if v, ok := pairs[m.KeyName]; ok {
			matched = append(matched, matchedKey{mapping: m, value: v})
		}
	}
	return matched
}

// processDocumented extracts key-value pairs from the documentation of doc
// and applies the configured mappings: custom properties are written onto doc
// in place, all other metadata types become change proposals that are
// appended to the side buffer and returned. A failure to build the metadata
// for one key is logged and does not affect the remaining keys.
func (t *Transformer) processDocumented(entityURN string, doc api.Documented, source string) []*api.ChangeProposal {
	text, ok := doc.Documentation(t.cfg.DocumentationField)
	if !ok || text == "" {
		return nil
	}
	matched := filterPairs(t.extractor.Pairs(text), t.cfg.KeyMappings)
	if len(matched) == 0 {
		return nil
	}

	var proposals []*api.ChangeProposal
	matchedPairs := make(map[string]string, len(matched))
	for _, mk := range matched {
		matchedPairs[mk.mapping.KeyName] = mk.value
		if mk.mapping.MetadataType == MetadataCustomProperty {
			t.applyCustomProperty(doc, mk.mapping.TargetName, mk.value)
			continue
		}
		ps, err := t.buildProposals(entityURN, mk.mapping, mk.value)
		if err != nil {
			log.Printf("Failed to build %s metadata for key %q on %s: %v",
				mk.mapping.MetadataType, mk.mapping.KeyName, entityURN, err)
			continue
		}
		proposals = append(proposals, ps...)
	}
	t.pending = append(t.pending, proposals...)

	// Last write per entity wins if the entity is revisited.
	t.processed[entityURN] = &ProcessedEntity{
		Matched: matchedPairs,
		Source:  source,
	}
	return proposals
}

func (t *Transformer) applyCustomProperty(doc api.Documented, name, value string) {
	if t.cfg.Semantics == SemanticsPatch {
		if _, exists := doc.CustomProperty(name); exists {
			return
		}
	}
	doc.SetCustomProperty(name, value)
}

// buildProposals creates the change proposals for one matched key.
// Owner mappings yield three proposals: the owner's profile, the owner's
// editable profile, and the ownership association on the entity.
func (t *Transformer) buildProposals(entityURN string, m *KeyMapping, value string) ([]*api.ChangeProposal, error) {
	switch m.MetadataType {
	case MetadataTag:
		return []*api.ChangeProposal{
			api.NewProposal(entityURN, &api.GlobalTags{
				Tags: []api.TagAssociation{{Tag: m.TargetName}},
			}),
		}, nil
	case MetadataGlossaryTerm:
		return []*api.ChangeProposal{
			api.NewProposal(entityURN, &api.GlossaryTerms{
				Terms: []api.GlossaryTermAssociation{{Term: m.TargetName}},
			}),
		}, nil
	case MetadataOwner:
		userID := api.UserID(value)
		if userID == "" {
			return nil, fmt.Errorf("owner value %q yields an empty user id", value)
		}
		ownershipType, ok := api.ParseOwnershipType(m.TargetName)
		if !ok {
			// Recoverable: fall back to DATAOWNER and report.
			t.warnings = append(t.warnings, fmt.Sprintf(
				"unrecognized ownership type %q for key %q, falling back to %s",
				m.TargetName, m.KeyName, api.OwnershipTypeDataOwner))
			log.Printf("Unrecognized ownership type %q for key %q, using %s",
				m.TargetName, m.KeyName, api.OwnershipTypeDataOwner)
			ownershipType = api.OwnershipTypeDataOwner
		}
		userURN := api.CorpUserURN(userID)
		return []*api.ChangeProposal{
			api.NewProposal(userURN, &api.CorpUserInfo{
				Active:      true,
				DisplayName: value,
				Email:       userID + "@" + t.cfg.OwnerEmailDomain,
				Title:       t.cfg.OwnerTitle,
			}),
			api.NewProposal(userURN, &api.CorpUserEditableInfo{
				DisplayName: value,
				Title:       t.cfg.OwnerTitle,
			}),
			api.NewProposal(entityURN, &api.Ownership{
				Owners: []api.Owner{{Owner: userURN, Type: ownershipType}},
			}),
		}, nil
	}
	return nil, fmt.Errorf("unsupported metadata type %q", m.MetadataType)
}

package transform

import (
	"testing"

	"github.com/dnswlt/docmeta/internal/api"
	"github.com/google/go-cmp/cmp"
)

const datasetURN = "urn:li:dataset:(urn:li:dataPlatform:bigquery,sales.orders,PROD)"

func newTransformer(t *testing.T, cfg *Config) *Transformer {
	t.Helper()
	tf, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return tf
}

func propertiesEnvelope(description string, customProperties map[string]string) *api.Envelope {
	return &api.Envelope{
		Record: &api.ChangeProposal{
			EntityURN:  datasetURN,
			EntityType: api.KindDataset,
			ChangeType: api.ChangeTypeUpsert,
			AspectName: api.AspectDatasetProperties,
			Aspect: &api.DatasetProperties{
				Properties: api.Properties{
					Description:      description,
					CustomProperties: customProperties,
				},
			},
		},
		Metadata: map[string]any{"workunit_id": "wu-1"},
	}
}

func TestTransformCustomProperty(t *testing.T) {
	tests := []struct {
		name      string
		semantics Semantics
		existing  map[string]string
		want      map[string]string
	}{
		{
			name:      "overwrite replaces existing value",
			semantics: SemanticsOverwrite,
			existing:  map[string]string{"tier": "bronze", "other": "kept"},
			want:      map[string]string{"tier": "gold", "other": "kept"},
		},
		{
			name:      "patch keeps existing value",
			semantics: SemanticsPatch,
			existing:  map[string]string{"tier": "bronze"},
			want:      map[string]string{"tier": "bronze"},
		},
		{
			name:      "patch sets absent value",
			semantics: SemanticsPatch,
			existing:  nil,
			want:      map[string]string{"tier": "gold"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tf := newTransformer(t, &Config{
				KeyMappings: []*KeyMapping{
					{KeyName: "Tier", MetadataType: MetadataCustomProperty, TargetName: "tier"},
				},
				Semantics: tc.semantics,
			})
			env := propertiesEnvelope("- Tier: gold", tc.existing)
			out := tf.TransformOne(env)
			if len(out) != 1 {
				t.Fatalf("len(out) = %d, want 1", len(out))
			}
			if out[0] != env {
				t.Error("out[0] is not the original envelope")
			}
			props := env.Record.(*api.ChangeProposal).Aspect.(*api.DatasetProperties)
			if diff := cmp.Diff(tc.want, props.CustomProperties); diff != "" {
				t.Errorf("CustomProperties mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTransformOwner(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Owner", MetadataType: MetadataOwner, TargetName: "TECHNICAL_OWNER"},
		},
	})
	env := propertiesEnvelope("- Owner: Jane Doe", nil)
	out := tf.TransformOne(env)
	// Original plus corpUserInfo, corpUserEditableInfo, ownership, in that order.
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}

	userURN := "urn:li:corpuser:jane_doe"

	info := out[1].Record.(*api.ChangeProposal)
	if info.EntityURN != userURN {
		t.Errorf("info.EntityURN = %q, want %q", info.EntityURN, userURN)
	}
	wantInfo := &api.CorpUserInfo{
		Active:      true,
		DisplayName: "Jane Doe",
		Email:       "jane_doe@example.com",
		Title:       "Data Owner",
	}
	if diff := cmp.Diff(wantInfo, info.Aspect); diff != "" {
		t.Errorf("corpUserInfo mismatch (-want +got):\n%s", diff)
	}

	editable := out[2].Record.(*api.ChangeProposal)
	if editable.AspectName != api.AspectCorpUserEditableInfo {
		t.Errorf("out[2].AspectName = %q, want %q", editable.AspectName, api.AspectCorpUserEditableInfo)
	}

	ownership := out[3].Record.(*api.ChangeProposal)
	if ownership.EntityURN != datasetURN {
		t.Errorf("ownership.EntityURN = %q, want %q", ownership.EntityURN, datasetURN)
	}
	wantOwnership := &api.Ownership{
		Owners: []api.Owner{{Owner: userURN, Type: api.OwnershipTypeTechnicalOwner}},
	}
	if diff := cmp.Diff(wantOwnership, ownership.Aspect); diff != "" {
		t.Errorf("ownership mismatch (-want +got):\n%s", diff)
	}

	// Stream metadata must be propagated onto the created envelopes.
	for i, o := range out[1:] {
		if diff := cmp.Diff(env.Metadata, o.Metadata); diff != "" {
			t.Errorf("out[%d].Metadata mismatch (-want +got):\n%s", i+1, diff)
		}
	}
}

func TestTransformOwnerUnknownTypeFallsBack(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Owner", MetadataType: MetadataOwner, TargetName: "BIGBOSS"},
		},
	})
	out := tf.TransformOne(propertiesEnvelope("- Owner: Jane Doe", nil))
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	ownership := out[3].Record.(*api.ChangeProposal).Aspect.(*api.Ownership)
	if got := ownership.Owners[0].Type; got != api.OwnershipTypeDataOwner {
		t.Errorf("ownership type = %q, want fallback %q", got, api.OwnershipTypeDataOwner)
	}
	report := tf.Report()
	if len(report.Warnings) != 1 {
		t.Errorf("len(report.Warnings) = %d, want 1", len(report.Warnings))
	}
}

func TestTransformOwnerEmailDomainConfigurable(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Owner", MetadataType: MetadataOwner, TargetName: "DATAOWNER"},
		},
		OwnerEmailDomain: "corp.example.org",
	})
	out := tf.TransformOne(propertiesEnvelope("- Owner: Jane Doe", nil))
	info := out[1].Record.(*api.ChangeProposal).Aspect.(*api.CorpUserInfo)
	if info.Email != "jane_doe@corp.example.org" {
		t.Errorf("info.Email = %q, want %q", info.Email, "jane_doe@corp.example.org")
	}
}

func TestTransformTagAndGlossaryTerm(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Tier", MetadataType: MetadataTag, TargetName: "urn:li:tag:tier-gold"},
			{KeyName: "Domain", MetadataType: MetadataGlossaryTerm, TargetName: "urn:li:glossaryTerm:Sales"},
		},
	})
	// The source text lists the keys in reverse order; output order follows
	// the configured mappings.
	out := tf.TransformOne(propertiesEnvelope("- Domain: sales\n- Tier: gold", nil))
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}

	tags := out[1].Record.(*api.ChangeProposal)
	if tags.AspectName != api.AspectGlobalTags {
		t.Errorf("out[1].AspectName = %q, want %q", tags.AspectName, api.AspectGlobalTags)
	}
	wantTags := &api.GlobalTags{Tags: []api.TagAssociation{{Tag: "urn:li:tag:tier-gold"}}}
	if diff := cmp.Diff(wantTags, tags.Aspect); diff != "" {
		t.Errorf("globalTags mismatch (-want +got):\n%s", diff)
	}

	terms := out[2].Record.(*api.ChangeProposal)
	wantTerms := &api.GlossaryTerms{Terms: []api.GlossaryTermAssociation{{Term: "urn:li:glossaryTerm:Sales"}}}
	if diff := cmp.Diff(wantTerms, terms.Aspect); diff != "" {
		t.Errorf("glossaryTerms mismatch (-want +got):\n%s", diff)
	}
}

func TestTransformPassthrough(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Tier", MetadataType: MetadataTag, TargetName: "urn:li:tag:tier-gold"},
		},
	})
	tests := []struct {
		name string
		env  *api.Envelope
	}{
		{
			name: "no documentation-bearing aspect",
			env: &api.Envelope{
				Record: &api.ChangeProposal{
					EntityURN:  datasetURN,
					AspectName: api.AspectOwnership,
					Aspect:     &api.Ownership{},
				},
			},
		},
		{
			name: "documentation without matching keys",
			env:  propertiesEnvelope("No annotations here.", nil),
		},
		{
			name: "event without snapshot",
			env:  &api.Envelope{Record: &api.ChangeEvent{}},
		},
		{
			name: "empty envelope",
			env:  &api.Envelope{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := tf.TransformOne(tc.env)
			if len(out) != 1 || out[0] != tc.env {
				t.Errorf("record did not pass through unchanged: len(out) = %d", len(out))
			}
		})
	}
	if pending := tf.EndOfStream(); len(pending) != 0 {
		t.Errorf("len(EndOfStream()) = %d, want 0", len(pending))
	}
}

func TestTransformSnapshotEvent(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Tier", MetadataType: MetadataCustomProperty, TargetName: "tier"},
			{KeyName: "Team", MetadataType: MetadataTag, TargetName: "urn:li:tag:team-sales"},
		},
	})
	props := &api.DatasetProperties{
		Properties: api.Properties{Description: "- Tier: gold\n- Team: sales"},
	}
	env := &api.Envelope{
		Record: &api.ChangeEvent{
			ProposedSnapshot: &api.Snapshot{
				URN: datasetURN,
				// The first documented sub-aspect wins; ownership is skipped.
				Aspects: []api.Aspect{&api.Ownership{}, props},
			},
		},
	}
	out := tf.Transform([]*api.Envelope{env})
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0] != env {
		t.Error("out[0] is not the original envelope")
	}
	if got, want := props.CustomProperties["tier"], "gold"; got != want {
		t.Errorf("customProperties[tier] = %q, want %q", got, want)
	}
	tag := out[1].Record.(*api.ChangeProposal)
	if tag.EntityURN != datasetURN || tag.AspectName != api.AspectGlobalTags {
		t.Errorf("unexpected proposal: %s %s", tag.EntityURN, tag.AspectName)
	}
}

func TestTransformAspect(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Tier", MetadataType: MetadataCustomProperty, TargetName: "tier"},
			{KeyName: "Team", MetadataType: MetadataTag, TargetName: "urn:li:tag:team-sales"},
		},
	})

	t.Run("nil aspect", func(t *testing.T) {
		if got := tf.TransformAspect(datasetURN, api.AspectDatasetProperties, nil); got != nil {
			t.Errorf("TransformAspect(nil) = %v, want nil", got)
		}
	})

	t.Run("documented aspect", func(t *testing.T) {
		props := &api.DatasetProperties{
			Properties: api.Properties{Description: "- Tier: gold\n- Team: sales"},
		}
		got := tf.TransformAspect(datasetURN, api.AspectDatasetProperties, props)
		if got != api.Aspect(props) {
			t.Error("TransformAspect did not return the same aspect")
		}
		if props.CustomProperties["tier"] != "gold" {
			t.Errorf("customProperties[tier] = %q, want %q", props.CustomProperties["tier"], "gold")
		}
	})

	t.Run("snapshot aspect", func(t *testing.T) {
		props := &api.DashboardProperties{
			Properties: api.Properties{Description: "- Team: sales"},
		}
		snap := &api.Snapshot{URN: datasetURN, Aspects: []api.Aspect{props}}
		tf.TransformAspect(datasetURN, api.AspectDashboardSnapshot, snap)
	})

	// The tag proposals from both calls are buffered, not emitted inline.
	pending := tf.EndOfStream()
	if len(pending) != 2 {
		t.Fatalf("len(EndOfStream()) = %d, want 2", len(pending))
	}
	for _, p := range pending {
		if p.AspectName != api.AspectGlobalTags {
			t.Errorf("pending aspect = %q, want %q", p.AspectName, api.AspectGlobalTags)
		}
	}

	report := tf.Report()
	wantSeen := map[string]int{
		api.AspectDatasetProperties: 2, // nil + documented
		api.AspectDashboardSnapshot: 1,
	}
	if diff := cmp.Diff(wantSeen, report.AspectsSeen); diff != "" {
		t.Errorf("AspectsSeen mismatch (-want +got):\n%s", diff)
	}
}

func TestEndOfStreamDrainsOnce(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Tier", MetadataType: MetadataTag, TargetName: "urn:li:tag:tier-gold"},
		},
	})
	tf.TransformOne(propertiesEnvelope("- Tier: gold", nil))

	first := tf.EndOfStream()
	if len(first) != 1 {
		t.Fatalf("len(first drain) = %d, want 1", len(first))
	}
	second := tf.EndOfStream()
	if len(second) != 0 {
		t.Errorf("len(second drain) = %d, want 0", len(second))
	}
}

func TestTransformReport(t *testing.T) {
	tf := newTransformer(t, &Config{
		KeyMappings: []*KeyMapping{
			{KeyName: "Tier", MetadataType: MetadataCustomProperty, TargetName: "tier"},
		},
	})
	tf.TransformOne(propertiesEnvelope("- Tier: gold\n- Unmapped: ignored", nil))

	report := tf.Report()
	entity, ok := report.Entities[datasetURN]
	if !ok {
		t.Fatalf("no report entry for %s", datasetURN)
	}
	want := map[string]string{"Tier": "gold"}
	if diff := cmp.Diff(want, entity.Matched); diff != "" {
		t.Errorf("Matched mismatch (-want +got):\n%s", diff)
	}
	if entity.Source != api.AspectDatasetProperties {
		t.Errorf("Source = %q, want %q", entity.Source, api.AspectDatasetProperties)
	}
}

func TestEntityKindsAndAspectNames(t *testing.T) {
	kinds := EntityKinds()
	if len(kinds) != 6 {
		t.Errorf("len(EntityKinds()) = %d, want 6", len(kinds))
	}
	aspects := AspectNames()
	for _, want := range []string{api.AspectGlobalTags, api.AspectGlossaryTerms, api.AspectOwnership} {
		found := false
		for _, a := range aspects {
			if a == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("AspectNames() does not contain %q", want)
		}
	}
}

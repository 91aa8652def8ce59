// This file contains the metadata model classes that docmeta operates on.
// The types are broadly compatible with DataHub's metadata change event /
// proposal model:
// https://datahubproject.io/docs/what/mxe/
package api

import (
	"fmt"
	"regexp"
	"strings"
)

// EntityKind identifies a catalog entity kind (e.g. "dataset").
type EntityKind string

const (
	KindDataset   EntityKind = "dataset"
	KindContainer EntityKind = "container"
	KindDataFlow  EntityKind = "dataFlow"
	KindDataJob   EntityKind = "dataJob"
	KindChart     EntityKind = "chart"
	KindDashboard EntityKind = "dashboard"
	KindCorpUser  EntityKind = "corpuser"
)

// Aspect names, as used in change proposals and snapshot aspect lists.
const (
	AspectDatasetProperties   = "datasetProperties"
	AspectContainerProperties = "containerProperties"
	AspectDataFlowProperties  = "dataFlowProperties"
	AspectDataJobProperties   = "dataJobProperties"
	AspectChartProperties     = "chartProperties"
	AspectDashboardProperties = "dashboardProperties"

	AspectDatasetSnapshot   = "datasetSnapshot"
	AspectContainerSnapshot = "containerSnapshot"
	AspectDataFlowSnapshot  = "dataFlowSnapshot"
	AspectDataJobSnapshot   = "dataJobSnapshot"
	AspectChartSnapshot     = "chartSnapshot"
	AspectDashboardSnapshot = "dashboardSnapshot"

	AspectGlobalTags           = "globalTags"
	AspectGlossaryTerms        = "glossaryTerms"
	AspectOwnership            = "ownership"
	AspectCorpUserInfo         = "corpUserInfo"
	AspectCorpUserEditableInfo = "corpUserEditableInfo"
)

// ChangeTypeUpsert is the only change type docmeta emits.
const ChangeTypeUpsert = "UPSERT"

var (
	// Regexp matching the leading part of an URN, up to the entity kind.
	// Example: "urn:li:dataset:(urn:li:dataPlatform:bigquery,sales.orders,PROD)".
	urnKindRE = regexp.MustCompile(`^urn:li:([A-Za-z][A-Za-z0-9]*):`)
)

// CorpUserURN returns the URN of the corp user with the given id.
func CorpUserURN(id string) string {
	return "urn:li:corpuser:" + id
}

// UserID derives a corp user id from a display value, by lower-casing it and
// replacing spaces with underscores. The derivation is idempotent: applying it
// to its own output yields the same id.
func UserID(display string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(display)), " ", "_")
}

// EntityKindFromURN extracts the entity kind from an URN in the
// "urn:li:<kind>:..." format. Returns the empty kind if the URN does not have
// that shape.
func EntityKindFromURN(urn string) EntityKind {
	m := urnKindRE.FindStringSubmatch(urn)
	if m == nil {
		return ""
	}
	return EntityKind(m[1])
}

// OwnershipType classifies the relationship between an owner and an entity.
type OwnershipType string

const (
	OwnershipTypeDataOwner      OwnershipType = "DATAOWNER"
	OwnershipTypeStakeholder    OwnershipType = "STAKEHOLDER"
	OwnershipTypeDelegate       OwnershipType = "DELEGATE"
	OwnershipTypeProducer       OwnershipType = "PRODUCER"
	OwnershipTypeConsumer       OwnershipType = "CONSUMER"
	OwnershipTypeTechnicalOwner OwnershipType = "TECHNICAL_OWNER"
)

var validOwnershipTypes = map[OwnershipType]bool{
	OwnershipTypeDataOwner:      true,
	OwnershipTypeStakeholder:    true,
	OwnershipTypeDelegate:       true,
	OwnershipTypeProducer:       true,
	OwnershipTypeConsumer:       true,
	OwnershipTypeTechnicalOwner: true,
}

// ParseOwnershipType maps a token to a known OwnershipType.
// The second return value is false for unrecognized tokens.
func ParseOwnershipType(s string) (OwnershipType, bool) {
	ot := OwnershipType(s)
	return ot, validOwnershipTypes[ot]
}

// Aspect is the interface implemented by all aspect types.
type Aspect interface {
	// Returns the aspect name, as used in change proposals and snapshot
	// aspect lists (e.g. "datasetProperties").
	AspectName() string
}

// Documented is the interface implemented by aspects that can carry free-text
// documentation and a custom property bag. The properties aspects of all
// entity kinds implement it.
type Documented interface {
	Aspect
	// Returns the value of the given documentation field and whether the
	// aspect exposes a field of that name at all. An exposed but empty field
	// yields ("", true).
	Documentation(field string) (string, bool)
	// Returns the value of the named custom property, if present.
	CustomProperty(name string) (string, bool)
	// Sets a custom property, initializing the property bag if necessary.
	SetCustomProperty(name, value string)
}

// Properties holds the fields shared by the per-kind properties aspects.
type Properties struct {
	// A display name for the entity.
	// [optional]
	Name string `json:"name,omitempty"`
	// Free-text documentation of the entity. This is the field that docmeta
	// scans for key-value annotations by default.
	// [optional]
	Description string `json:"description,omitempty"`
	// A link to an external view of the entity (e.g. in the source system).
	// [optional]
	ExternalURL string `json:"externalUrl,omitempty"`
	// Arbitrary key/value string pairs attached to the entity.
	// [optional]
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// Documentation field names understood by Properties aspects.
const (
	FieldDescription = "description"
	FieldName        = "name"
	FieldExternalURL = "externalUrl"
)

func (p *Properties) Documentation(field string) (string, bool) {
	switch field {
	case FieldDescription:
		return p.Description, true
	case FieldName:
		return p.Name, true
	case FieldExternalURL:
		return p.ExternalURL, true
	}
	return "", false
}

func (p *Properties) CustomProperty(name string) (string, bool) {
	v, ok := p.CustomProperties[name]
	return v, ok
}

func (p *Properties) SetCustomProperty(name, value string) {
	if p.CustomProperties == nil {
		p.CustomProperties = make(map[string]string)
	}
	p.CustomProperties[name] = value
}

// Per-kind properties aspects. They only differ in their aspect name.

type DatasetProperties struct{ Properties }
type ContainerProperties struct{ Properties }
type DataFlowProperties struct{ Properties }
type DataJobProperties struct{ Properties }
type ChartProperties struct{ Properties }
type DashboardProperties struct{ Properties }

func (p *DatasetProperties) AspectName() string   { return AspectDatasetProperties }
func (p *ContainerProperties) AspectName() string { return AspectContainerProperties }
func (p *DataFlowProperties) AspectName() string  { return AspectDataFlowProperties }
func (p *DataJobProperties) AspectName() string   { return AspectDataJobProperties }
func (p *ChartProperties) AspectName() string     { return AspectChartProperties }
func (p *DashboardProperties) AspectName() string { return AspectDashboardProperties }

// TagAssociation associates a single tag (by URN) with an entity.
type TagAssociation struct {
	Tag string `json:"tag"`
}

// GlobalTags is the aspect holding all tag associations of an entity.
type GlobalTags struct {
	Tags []TagAssociation `json:"tags"`
}

func (t *GlobalTags) AspectName() string { return AspectGlobalTags }

// GlossaryTermAssociation associates a single glossary term (by URN) with an entity.
type GlossaryTermAssociation struct {
	Term string `json:"urn"`
}

// GlossaryTerms is the aspect holding all glossary term associations of an entity.
type GlossaryTerms struct {
	Terms []GlossaryTermAssociation `json:"terms"`
}

func (g *GlossaryTerms) AspectName() string { return AspectGlossaryTerms }

// Owner is a single ownership record of an entity.
type Owner struct {
	// The URN of the owning corp user.
	Owner string `json:"owner"`
	// The type of the ownership relation.
	Type OwnershipType `json:"type"`
}

// Ownership is the aspect holding all ownership records of an entity.
type Ownership struct {
	Owners []Owner `json:"owners"`
}

func (o *Ownership) AspectName() string { return AspectOwnership }

// CorpUserInfo is the (system-provided) profile aspect of a corp user.
type CorpUserInfo struct {
	Active      bool   `json:"active"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	Title       string `json:"title,omitempty"`
}

func (c *CorpUserInfo) AspectName() string { return AspectCorpUserInfo }

// CorpUserEditableInfo is the user-editable profile aspect of a corp user.
type CorpUserEditableInfo struct {
	DisplayName string `json:"displayName,omitempty"`
	Title       string `json:"title,omitempty"`
}

func (c *CorpUserEditableInfo) AspectName() string { return AspectCorpUserEditableInfo }

// Record is the tagged variant over the record shapes that can appear in an
// ingestion stream: event-style snapshots (ChangeEvent) and proposal-style
// single-aspect records (ChangeProposal).
type Record interface {
	// Returns the record kind, for logging and wire dispatch.
	RecordKind() string
}

// Snapshot bundles an entity URN with an ordered list of its aspects.
type Snapshot struct {
	// The URN of the entity the snapshot describes.
	// [required]
	URN string
	// The ordered list of aspects attached to the entity.
	// [optional]
	Aspects []Aspect
}

// Snapshots can appear as aspects themselves (e.g. "datasetSnapshot" records
// passed through TransformAspect), so Snapshot implements Aspect.
func (s *Snapshot) AspectName() string { return "snapshot" }

// ChangeEvent is the event-style record shape: a proposed snapshot of an
// entity with a list of aspects.
type ChangeEvent struct {
	ProposedSnapshot *Snapshot
}

func (e *ChangeEvent) RecordKind() string { return "metadataChangeEvent" }

// ChangeProposal is the proposal-style record shape: a single aspect mutation
// for one entity.
type ChangeProposal struct {
	// The URN of the entity the proposal applies to.
	// [required]
	EntityURN string
	// The kind of the entity, if known.
	// [optional]
	EntityType EntityKind
	// The change type. docmeta only ever emits UPSERT.
	// [optional]
	ChangeType string
	// The name of the aspect carried by the proposal.
	// [required]
	AspectName string
	// The aspect value.
	// [required]
	Aspect Aspect
}

func (p *ChangeProposal) RecordKind() string { return "metadataChangeProposal" }

// NewProposal returns an UPSERT change proposal for the given entity and
// aspect, deriving the entity type from the URN where possible.
func NewProposal(entityURN string, aspect Aspect) *ChangeProposal {
	return &ChangeProposal{
		EntityURN:  entityURN,
		EntityType: EntityKindFromURN(entityURN),
		ChangeType: ChangeTypeUpsert,
		AspectName: aspect.AspectName(),
		Aspect:     aspect,
	}
}

// Envelope is one unit of the ingestion stream: a record plus opaque stream
// metadata. Metadata must be propagated unchanged onto any record that is
// created while processing the envelope.
type Envelope struct {
	Record   Record
	Metadata map[string]any
}

// String returns a short description of the envelope for log messages.
func (e *Envelope) String() string {
	if e == nil || e.Record == nil {
		return "envelope(<nil>)"
	}
	switch r := e.Record.(type) {
	case *ChangeEvent:
		urn := "<nil>"
		if r.ProposedSnapshot != nil {
			urn = r.ProposedSnapshot.URN
		}
		return fmt.Sprintf("envelope(%s %s)", r.RecordKind(), urn)
	case *ChangeProposal:
		return fmt.Sprintf("envelope(%s %s %s)", r.RecordKind(), r.EntityURN, r.AspectName)
	}
	return fmt.Sprintf("envelope(%s)", e.Record.RecordKind())
}

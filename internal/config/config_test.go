package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dnswlt/docmeta/internal/store"
	"github.com/dnswlt/docmeta/internal/transform"
)

func writeConfig(t *testing.T, contents string) store.Store {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "docmeta.yml"), []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return store.NewDiskStore(dir)
}

func TestLoad(t *testing.T) {
	st := writeConfig(t, `
transformer:
  semantics: PATCH
  ownerEmailDomain: corp.example.org
  keyMappings:
    - keyName: Tier
      metadataType: custom_property
      targetName: tier
    - keyName: Owner
      metadataType: owner
      targetName: TECHNICAL_OWNER
      description: The owning team lead.
records:
  dir: records
`)
	bundle, err := Load(st, "docmeta.yml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if bundle.Records.Dir != "records" {
		t.Errorf("Records.Dir = %q, want %q", bundle.Records.Dir, "records")
	}
	tr := &bundle.Transformer
	if tr.Semantics != transform.SemanticsPatch {
		t.Errorf("Semantics = %q, want %q", tr.Semantics, transform.SemanticsPatch)
	}
	if tr.OwnerEmailDomain != "corp.example.org" {
		t.Errorf("OwnerEmailDomain = %q", tr.OwnerEmailDomain)
	}
	// Defaults populated by validation.
	if tr.DocumentationField != "description" {
		t.Errorf("DocumentationField = %q, want %q", tr.DocumentationField, "description")
	}
	if len(tr.KeyMappings) != 2 {
		t.Fatalf("len(KeyMappings) = %d, want 2", len(tr.KeyMappings))
	}
	if tr.KeyMappings[1].MetadataType != transform.MetadataOwner {
		t.Errorf("KeyMappings[1].MetadataType = %q", tr.KeyMappings[1].MetadataType)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown field",
			yaml: `
transformer:
  keyMappings: []
  frobnicate: true
`,
			wantErr: "frobnicate",
		},
		{
			name: "invalid transformer config",
			yaml: `
transformer:
  keyMappings:
    - keyName: Tier
      metadataType: sticker
      targetName: tier
`,
			wantErr: "invalid metadataType",
		},
		{
			name:    "not yaml",
			yaml:    "{{{",
			wantErr: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := writeConfig(t, tc.yaml)
			_, err := Load(st, "docmeta.yml")
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if tc.wantErr != "" && !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Load error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	st := store.NewDiskStore(t.TempDir())
	if _, err := Load(st, "docmeta.yml"); err == nil {
		t.Error("Load succeeded for missing file, want error")
	}
}

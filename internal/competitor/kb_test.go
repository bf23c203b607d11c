package competitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKnowledgeBase(t *testing.T) {
	t.Parallel()

	kb := DefaultKnowledgeBase()
	assert.Equal(t, 12, kb.Len())

	tests := []struct {
		query string
		want  string
	}{
		{"Salesforce", "Salesforce"},
		{"salesforce inc", "Salesforce"},
		{"SFDC", "Salesforce"},
		{"netsuite.com", "Oracle"},
		{"www.hubspot.com", "HubSpot"},
		{"Microsoft Dynamics 365", "Microsoft Dynamics"},
		{"Jira Service Management", "Atlassian"},
	}
	for _, tt := range tests {
		e, ok := kb.Lookup(tt.query)
		require.True(t, ok, tt.query)
		assert.Equal(t, tt.want, e.Name, tt.query)
	}
}

func TestLookup_Misses(t *testing.T) {
	t.Parallel()

	kb := DefaultKnowledgeBase()
	for _, q := range []string{"", "  ", "Sapient", "Acme Corp", "zohomail"} {
		_, ok := kb.Lookup(q)
		assert.False(t, ok, q)
	}

	var nilKB *KnowledgeBase
	_, ok := nilKB.Lookup("Salesforce")
	assert.False(t, ok)
	assert.Equal(t, 0, nilKB.Len())
}

func TestDifferentiators(t *testing.T) {
	t.Parallel()

	kb := DefaultKnowledgeBase()
	assert.Contains(t, kb.Differentiators("PagerDuty"), "digital operations management platform")
	assert.Contains(t, kb.Differentiators("zenduty.com"), "incident management platform")
	assert.NotContains(t, kb.Differentiators("Zoho"), "\n")
	assert.Empty(t, kb.Differentiators("Initech"))
}

func TestAliases(t *testing.T) {
	t.Parallel()

	kb := DefaultKnowledgeBase()
	assert.Equal(t, []string{"Pipedrive CRM"}, kb.Aliases("Pipedrive"))
	assert.Equal(t, []string{"Oracle", "Oracle CX", "Oracle CX Cloud", "Oracle NetSuite", "NetSuite"}, kb.Aliases("NetSuite"))
	assert.Nil(t, kb.Aliases("Initech"))
}

func TestLoadKnowledgeBase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kb.yaml")
	data := `knowledge_base:
  competitors:
    - name: Initech
      aliases: [Initrode]
      domains: [initech.example]
      differentiators: "  TPS reports at scale.  "
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	kb, err := LoadKnowledgeBase(path)
	require.NoError(t, err)
	assert.Equal(t, 1, kb.Len())
	assert.Equal(t, "TPS reports at scale.", kb.Differentiators("Initrode"))

	def, err := LoadKnowledgeBase("")
	require.NoError(t, err)
	assert.Equal(t, 12, def.Len())
}

func TestLoadKnowledgeBase_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadKnowledgeBase(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseKnowledgeBase([]byte("knowledge_base: [unclosed"))
	assert.Error(t, err)

	_, err = ParseKnowledgeBase([]byte("knowledge_base:\n  competitors:\n    - aliases: [x]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 0 has no name")
}

func TestContainsWord(t *testing.T) {
	t.Parallel()

	assert.True(t, containsWord("the sap platform", "sap"))
	assert.True(t, containsWord("sapient and sap", "sap"))
	assert.False(t, containsWord("sapient", "sap"))
	assert.False(t, containsWord("anything", ""))
}

package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryUpHasADown(t *testing.T) {
	names, err := fs.Glob(schemaFS, "sql/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", n)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestCampaignChildrenCascade(t *testing.T) {
	for _, name := range []string{
		"sql/0001_create_campaigns.up.sql",
		"sql/0002_create_sub_configs.up.sql",
		"sql/0003_create_comm_templates.up.sql",
	} {
		t.Run(name, func(t *testing.T) {
			body, err := fs.ReadFile(schemaFS, name)
			require.NoError(t, err)

			refs := strings.Count(string(body), "REFERENCES campaigns(id)")
			cascades := strings.Count(string(body), "REFERENCES campaigns(id) ON DELETE CASCADE")
			assert.Positive(t, refs)
			assert.Equal(t, refs, cascades)
		})
	}
}

func TestCampaignNameIsUnique(t *testing.T) {
	body, err := fs.ReadFile(schemaFS, "sql/0001_create_campaigns.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "CONSTRAINT uk_campaigns_name UNIQUE (name)")
}

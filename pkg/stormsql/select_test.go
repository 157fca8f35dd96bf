package stormsql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veebhq/veeb/pkg/stormsql"
)

func TestParseSelect(t *testing.T) {
	sc, err := stormsql.ParseSelect("SELECT count(*) FROM issues WHERE DeviceID = 'dev-1' AND Views > 3 ORDER BY CreatedAt DESC LIMIT 5")
	require.NoError(t, err)

	assert.True(t, sc.Count)
	assert.Equal(t, "issues", sc.Tablename)
	assert.NotNil(t, sc.Matcher)
	assert.Equal(t, 5, sc.Limit)
	assert.Equal(t, []string{"CreatedAt"}, sc.OrderBy)
	assert.True(t, sc.OrderByReversed)
}

func TestParseSelectFields(t *testing.T) {
	sc, err := stormsql.ParseSelect("SELECT Title, ReactionCount FROM issues LIMIT 2,10")
	require.NoError(t, err)

	assert.Equal(t, []string{"Title", "ReactionCount"}, sc.SelectedFields)
	assert.Equal(t, 2, sc.Skip)
	assert.Equal(t, 10, sc.Limit)
}

func TestParseSelectRejectsOthers(t *testing.T) {
	_, err := stormsql.ParseSelect("DELETE FROM issues")
	assert.Error(t, err)

	_, err = stormsql.ParseSelect("SELECT * FROM")
	assert.Error(t, err)
}

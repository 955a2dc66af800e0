package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCollection() *Collection {
	return &Collection{
		userID: "user-1",
		name:   "sessions",
	}
}

func TestQuery_BuildSQL_NoFilters(t *testing.T) {
	sql, args, err := testCollection().Query().buildSQL()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT doc_id, doc FROM user_document WHERE user_id = $1 AND collection = $2;`,
		sql,
	)
	assert.Equal(t, []any{"user-1", "sessions"}, args)
}

func TestQuery_BuildSQL_EqualityNull(t *testing.T) {
	sql, args, err := testCollection().Query().
		Where("end_time", OpEqual, nil).
		Limit(1).
		buildSQL()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT doc_id, doc FROM user_document WHERE user_id = $1 AND collection = $2`+
			` AND doc->'end_time' = $3::jsonb LIMIT $4;`,
		sql,
	)
	require.Len(t, args, 4)
	assert.Equal(t, []byte("null"), args[2])
	assert.Equal(t, 1, args[3])
}

func TestQuery_BuildSQL_RangeOrderLimit(t *testing.T) {
	sql, args, err := testCollection().Query().
		Where("date", OpGreaterEqual, "2024-01-01").
		Where("date", OpLessEqual, "2024-01-31").
		OrderBy("date", true).
		Limit(50).
		buildSQL()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT doc_id, doc FROM user_document WHERE user_id = $1 AND collection = $2`+
			` AND doc->>'date' >= $3 AND doc->>'date' <= $4`+
			` ORDER BY doc->>'date' DESC LIMIT $5;`,
		sql,
	)
	assert.Equal(t, []any{"user-1", "sessions", "2024-01-01", "2024-01-31", 50}, args)
}

func TestQuery_BuildSQL_EqualityString(t *testing.T) {
	sql, args, err := testCollection().Query().
		Where("name", OpEqual, "Bench Press").
		buildSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `doc->'name' = $3::jsonb`)
	assert.Equal(t, []byte(`"Bench Press"`), args[2])
}

func TestQuery_BuildSQL_UnsupportedOp(t *testing.T) {
	_, _, err := testCollection().Query().
		Where("name", "!=", "x").
		buildSQL()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported filter op")
}

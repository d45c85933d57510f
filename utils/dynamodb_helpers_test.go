package utils

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	item := map[string]types.AttributeValue{
		"PK":         S("GROUP#g1"),
		"isFavorite": &types.AttributeValueMemberBOOL{Value: true},
		"count":      &types.AttributeValueMemberN{Value: "3"},
	}
	assert.Equal(t, "GROUP#g1", ExtractString(item, "PK"))
	assert.Equal(t, "", ExtractString(item, "count"))
	assert.Equal(t, "", ExtractString(item, "missing"))
	assert.Equal(t, "", ExtractString(item, "isFavorite"))
	assert.Equal(t, "", ExtractString(nil, "PK"))
}

func TestKey(t *testing.T) {
	k := Key("GROUP#g1", "META")
	assert.Equal(t, "GROUP#g1", ExtractString(k, "PK"))
	assert.Equal(t, "META", ExtractString(k, "SK"))
	assert.Len(t, k, 2)
}

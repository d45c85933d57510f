// Package utils holds small DynamoDB attribute helpers shared by the store
// and its tests
package utils

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// S wraps v as a string attribute
func S(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

// Key builds a PK/SK primary key
func Key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"PK": S(pk), "SK": S(sk)}
}

// ExtractString safely extracts a string from a DynamoDB attribute map
func ExtractString(item map[string]types.AttributeValue, field string) string {
	if attr, ok := item[field]; ok {
		if v, ok := attr.(*types.AttributeValueMemberS); ok {
			return v.Value
		}
	}
	return ""
}

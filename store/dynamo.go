package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbcarlson3/meal-match/models"
	"github.com/kbcarlson3/meal-match/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key prefixes for the single-key-shape tables
const (
	groupPrefix = "GROUP#"
	actorPrefix = "ACTOR#"
	prefPrefix  = "PREF#"
	matchPrefix = "MATCH#"
	metaSK      = "META"
	memberSK    = "MEMBER"
)

type groupItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	models.Group
}

type memberItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	ActorID string `dynamodbav:"actorId"`
	GroupID string `dynamodbav:"groupId"`
}

type preferenceItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	models.PreferenceEvent
}

type matchItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	models.MatchRecord
}

type pushTokenItem struct {
	PK string `dynamodbav:"PK"`
	models.PushToken
}

func groupKey(groupID string) map[string]types.AttributeValue {
	return utils.Key(groupPrefix+groupID, metaSK)
}

func memberKey(actorID string) map[string]types.AttributeValue {
	return utils.Key(actorPrefix+actorID, memberSK)
}

func preferenceSK(actorID, itemID string) string { return prefPrefix + actorID + "#" + itemID }

// Dynamo is a Store over DynamoDB. Uniqueness rides on conditional writes.
type Dynamo struct {
	svc    *DynamoService
	tables dynamoTables

	// matchId index reads are eventually consistent; a miss is retried
	indexAttempts int
	indexBackoff  time.Duration
}

type dynamoTables struct {
	groups, preferences, matches, tokens string
}

// NewDynamo builds the store; prefix is prepended to every table name
func NewDynamo(client DynamoAPI, prefix string) *Dynamo {
	return &Dynamo{
		svc: &DynamoService{Client: client},
		tables: dynamoTables{
			groups:      prefix + models.GroupsTable,
			preferences: prefix + models.PreferencesTable,
			matches:     prefix + models.MatchesTable,
			tokens:      prefix + models.PushTokensTable,
		},
		indexAttempts: 4,
		indexBackoff:  150 * time.Millisecond,
	}
}

// Migrate creates the tables and the matchId index when missing
func (d *Dynamo) Migrate(ctx context.Context) error {
	if err := d.svc.CreateTable(ctx, d.tables.groups, true); err != nil {
		return err
	}
	if err := d.svc.CreateTable(ctx, d.tables.preferences, true); err != nil {
		return err
	}
	matchIndex := types.GlobalSecondaryIndex{
		IndexName:  aws.String(models.MatchIDIndex),
		KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String("matchId"), KeyType: types.KeyTypeHash}},
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
	if err := d.svc.CreateTable(ctx, d.tables.matches, true, matchIndex); err != nil {
		return err
	}
	return d.svc.CreateTable(ctx, d.tables.tokens, false)
}

// Close implements Store
func (d *Dynamo) Close() error { return nil }

// CreateGroup implements Groups. The group row and the creator's membership
// row are written in one transaction.
func (d *Dynamo) CreateGroup(ctx context.Context, g models.Group) (models.Group, error) {
	g.Second = ""
	gav, err := attributevalue.MarshalMap(groupItem{PK: groupPrefix + g.GroupID, SK: metaSK, Group: g})
	if err != nil {
		return models.Group{}, fmt.Errorf("marshal group: %w", err)
	}
	mav, err := attributevalue.MarshalMap(memberItem{PK: actorPrefix + g.First, SK: memberSK, ActorID: g.First, GroupID: g.GroupID})
	if err != nil {
		return models.Group{}, fmt.Errorf("marshal member: %w", err)
	}

	failed, err := d.svc.TransactWrite(ctx, []types.TransactWriteItem{
		{Put: &types.Put{TableName: aws.String(d.tables.groups), Item: gav, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
		{Put: &types.Put{TableName: aws.String(d.tables.groups), Item: mav, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
	})
	switch {
	case err == nil:
		return g, nil
	case failed == 0:
		return models.Group{}, models.ErrGroupExists
	case failed == 1:
		return models.Group{}, models.ErrActorInGroup
	}
	return models.Group{}, err
}

// JoinGroup implements Groups. Filling the second slot is conditional on it
// being empty, so a group completes exactly once.
func (d *Dynamo) JoinGroup(ctx context.Context, groupID, actorID string) (models.Group, error) {
	mav, err := attributevalue.MarshalMap(memberItem{PK: actorPrefix + actorID, SK: memberSK, ActorID: actorID, GroupID: groupID})
	if err != nil {
		return models.Group{}, fmt.Errorf("marshal member: %w", err)
	}

	failed, err := d.svc.TransactWrite(ctx, []types.TransactWriteItem{
		{Update: &types.Update{
			TableName:           aws.String(d.tables.groups),
			Key:                 groupKey(groupID),
			UpdateExpression:    aws.String("SET #second = :second"),
			ConditionExpression: aws.String("attribute_exists(PK) AND attribute_not_exists(#second)"),
			ExpressionAttributeNames: map[string]string{
				"#second": "second",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":second": utils.S(actorID),
			},
		}},
		{Put: &types.Put{TableName: aws.String(d.tables.groups), Item: mav, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
	})
	switch {
	case err == nil:
		return d.GetGroup(ctx, groupID)
	case failed == 0:
		if _, gerr := d.GetGroup(ctx, groupID); gerr != nil {
			return models.Group{}, gerr
		}
		return models.Group{}, models.ErrGroupComplete
	case failed == 1:
		return models.Group{}, models.ErrActorInGroup
	}
	return models.Group{}, err
}

// GetGroup implements Groups
func (d *Dynamo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var it groupItem
	if err := d.svc.GetItem(ctx, d.tables.groups, groupKey(groupID), &it); err != nil {
		if errors.Is(err, errItemNotFound) {
			return models.Group{}, models.ErrGroupNotFound
		}
		return models.Group{}, err
	}
	return it.Group, nil
}

// GroupForActor implements Groups
func (d *Dynamo) GroupForActor(ctx context.Context, actorID string) (models.Group, error) {
	var m memberItem
	if err := d.svc.GetItem(ctx, d.tables.groups, memberKey(actorID), &m); err != nil {
		if errors.Is(err, errItemNotFound) {
			return models.Group{}, models.ErrGroupNotFound
		}
		return models.Group{}, err
	}
	return d.GetGroup(ctx, m.GroupID)
}

// InsertPreference implements Ledger
func (d *Dynamo) InsertPreference(ctx context.Context, e models.PreferenceEvent) error {
	_, inserted, err := d.svc.PutItemIfAbsent(ctx, d.tables.preferences, preferenceItem{
		PK:              groupPrefix + e.GroupID,
		SK:              preferenceSK(e.ActorID, e.ItemID),
		PreferenceEvent: e,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return models.ErrDuplicatePreference
	}
	return nil
}

// GetPreference implements Ledger
func (d *Dynamo) GetPreference(ctx context.Context, key models.PreferenceKey) (models.PreferenceEvent, error) {
	var it preferenceItem
	err := d.svc.GetItem(ctx, d.tables.preferences, utils.Key(groupPrefix+key.GroupID, preferenceSK(key.ActorID, key.ItemID)), &it)
	if errors.Is(err, errItemNotFound) {
		return models.PreferenceEvent{}, models.ErrPreferenceNotFound
	}
	if err != nil {
		return models.PreferenceEvent{}, err
	}
	return it.PreferenceEvent, nil
}

// ListPreferences implements Ledger
func (d *Dynamo) ListPreferences(ctx context.Context, groupID, actorID string) ([]models.PreferenceEvent, error) {
	var items []preferenceItem
	err := d.svc.QueryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tables.preferences),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": utils.S(groupPrefix + groupID),
			":sk": utils.S(prefPrefix + actorID + "#"),
		},
		ConsistentRead: aws.Bool(true),
	}, &items)
	if err != nil {
		return nil, err
	}
	out := make([]models.PreferenceEvent, 0, len(items))
	for _, it := range items {
		out = append(out, it.PreferenceEvent)
	}
	return out, nil
}

// InsertMatchIfAbsent implements Matches via a conditional put on (group, item)
func (d *Dynamo) InsertMatchIfAbsent(ctx context.Context, m models.MatchRecord) (models.MatchRecord, bool, error) {
	existing, inserted, err := d.svc.PutItemIfAbsent(ctx, d.tables.matches, matchItem{
		PK:          groupPrefix + m.GroupID,
		SK:          matchPrefix + m.ItemID,
		MatchRecord: m,
	})
	if err != nil {
		return models.MatchRecord{}, false, err
	}
	if inserted {
		return m, true, nil
	}

	var it matchItem
	if utils.ExtractString(existing, "matchId") != "" {
		if err := attributevalue.UnmarshalMap(existing, &it); err != nil {
			return models.MatchRecord{}, false, fmt.Errorf("unmarshal existing match: %w", err)
		}
		return it.MatchRecord, false, nil
	}
	if err := d.svc.GetItem(ctx, d.tables.matches, utils.Key(groupPrefix+m.GroupID, matchPrefix+m.ItemID), &it); err != nil {
		if errors.Is(err, errItemNotFound) {
			return models.MatchRecord{}, false, unavailable("read existing match", err)
		}
		return models.MatchRecord{}, false, err
	}
	return it.MatchRecord, false, nil
}

// ListMatches implements Matches
func (d *Dynamo) ListMatches(ctx context.Context, groupID string) ([]models.MatchRecord, error) {
	var items []matchItem
	err := d.svc.QueryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tables.matches),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": utils.S(groupPrefix + groupID),
			":sk": utils.S(matchPrefix),
		},
		ConsistentRead: aws.Bool(true),
	}, &items)
	if err != nil {
		return nil, err
	}
	out := make([]models.MatchRecord, 0, len(items))
	for _, it := range items {
		out = append(out, it.MatchRecord)
	}
	sortMatches(out)
	return out, nil
}

// findMatch looks a match up through the matchId index. The index lags the
// table, so a miss is retried with a growing pause before it counts.
func (d *Dynamo) findMatch(ctx context.Context, matchID string) (matchItem, error) {
	for attempt := 1; ; attempt++ {
		var items []matchItem
		err := d.svc.QueryAll(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.tables.matches),
			IndexName:              aws.String(models.MatchIDIndex),
			KeyConditionExpression: aws.String("matchId = :id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":id": utils.S(matchID),
			},
		}, &items)
		if err != nil {
			return matchItem{}, err
		}
		if len(items) > 0 {
			return items[0], nil
		}
		if attempt >= d.indexAttempts {
			return matchItem{}, models.ErrMatchNotFound
		}

		t := time.NewTimer(time.Duration(attempt) * d.indexBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return matchItem{}, ctx.Err()
		case <-t.C:
		}
	}
}

// GetMatch implements Matches
func (d *Dynamo) GetMatch(ctx context.Context, matchID string) (models.MatchRecord, error) {
	it, err := d.findMatch(ctx, matchID)
	if err != nil {
		return models.MatchRecord{}, err
	}
	return it.MatchRecord, nil
}

// SetFavorite implements Matches. Only isFavorite is touched; the update is
// conditional on the row existing so it can never create a match.
func (d *Dynamo) SetFavorite(ctx context.Context, matchID string, favorite bool) (models.MatchRecord, error) {
	it, err := d.findMatch(ctx, matchID)
	if err != nil {
		return models.MatchRecord{}, err
	}

	var updated matchItem
	err = d.svc.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.tables.matches),
		Key:                 utils.Key(it.PK, it.SK),
		UpdateExpression:    aws.String("SET #fav = :fav"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#fav": "isFavorite",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fav": &types.AttributeValueMemberBOOL{Value: favorite},
		},
	}, &updated)
	if errors.Is(err, errItemNotFound) {
		return models.MatchRecord{}, models.ErrMatchNotFound
	}
	if err != nil {
		return models.MatchRecord{}, err
	}
	return updated.MatchRecord, nil
}

// PutPushToken implements Endpoints
func (d *Dynamo) PutPushToken(ctx context.Context, t models.PushToken) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	return d.svc.PutItem(ctx, d.tables.tokens, pushTokenItem{PK: actorPrefix + t.ActorID, PushToken: t})
}

// GetPushToken implements Endpoints
func (d *Dynamo) GetPushToken(ctx context.Context, actorID string) (models.PushToken, error) {
	var it pushTokenItem
	err := d.svc.GetItem(ctx, d.tables.tokens, map[string]types.AttributeValue{
		"PK": utils.S(actorPrefix + actorID),
	}, &it)
	if errors.Is(err, errItemNotFound) {
		return models.PushToken{}, models.ErrNoEndpoint
	}
	if err != nil {
		return models.PushToken{}, err
	}
	if it.Token == "" {
		return models.PushToken{}, models.ErrNoEndpoint
	}
	return it.PushToken, nil
}

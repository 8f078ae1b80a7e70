package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/burakmert236/volei-list/common/database"
	"github.com/burakmert236/volei-list/common/models"
)

var errReadOnly = errors.New("write attempted in a read-only view")

// dynamoStore keeps the whole roster in one partition. Each Update reads the
// partition, buffers its writes and commits them in a single transaction
// together with a version bump on the META item, so two writers that read
// the same version cannot both commit.
type dynamoStore struct {
	db     *database.DynamoDBClient
	txRepo database.TransactionRepository
	loc    *time.Location
	now    func() time.Time
}

func NewDynamoDBStore(db *database.DynamoDBClient, loc *time.Location) RosterStore {
	if loc == nil {
		loc = time.UTC
	}
	return &dynamoStore{
		db:     db,
		txRepo: database.NewTransactionRepository(db),
		loc:    loc,
		now:    time.Now,
	}
}

func (s *dynamoStore) View(ctx context.Context, fn func(repo EntryRepository) error) error {
	snap, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(&dynamoRepo{snap: snap, loc: s.loc})
}

func (s *dynamoStore) Update(ctx context.Context, fn func(repo EntryRepository) error) error {
	snap, err := s.load(ctx)
	if err != nil {
		return err
	}

	repo := &dynamoRepo{
		snap:    snap,
		loc:     s.loc,
		table:   s.db.Table(),
		builder: database.NewTransactionBuilder(),
		touched: make(map[string]bool),
	}
	if err := fn(repo); err != nil {
		return err
	}

	if repo.builder.Count() == 0 {
		return nil
	}

	if err := repo.builder.AddUpdate(s.metaUpdate(snap.meta)); err != nil {
		return err
	}

	if err := s.txRepo.Execute(ctx, repo.builder); err != nil {
		if errors.Is(err, database.ErrTransactionConflict) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return fmt.Errorf("failed to commit roster transaction: %w", err)
	}
	return nil
}

func (s *dynamoStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *dynamoStore) Close() error {
	return nil
}

type dynamoSnapshot struct {
	meta    *models.RosterMeta
	entries []models.Entry
}

func (s *dynamoStore) load(ctx context.Context) (*dynamoSnapshot, error) {
	snap := &dynamoSnapshot{}

	metaOut, err := s.db.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.db.Table()),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.RosterPK()},
			"SK": &types.AttributeValueMemberS{Value: models.MetaSK()},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get roster meta: %w", err)
	}
	if metaOut.Item != nil {
		var meta models.RosterMeta
		if err := attributevalue.UnmarshalMap(metaOut.Item, &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal roster meta: %w", err)
		}
		snap.meta = &meta
	}

	paginator := dynamodb.NewQueryPaginator(s.db.Client, &dynamodb.QueryInput{
		TableName:              aws.String(s.db.Table()),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: models.RosterPK()},
			":prefix": &types.AttributeValueMemberS{Value: models.EntrySKPrefix()},
		},
		ConsistentRead: aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query roster entries: %w", err)
		}

		var entries []models.Entry
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &entries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal roster entries: %w", err)
		}
		for i := range entries {
			entries[i].RegisteredAt = entries[i].RegisteredAt.In(s.loc)
		}
		snap.entries = append(snap.entries, entries...)
	}

	return snap, nil
}

func (s *dynamoStore) metaUpdate(meta *models.RosterMeta) types.Update {
	values := map[string]types.AttributeValue{
		":one": &types.AttributeValueMemberN{Value: "1"},
		":now": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
	}

	update := types.Update{
		TableName: aws.String(s.db.Table()),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.RosterPK()},
			"SK": &types.AttributeValueMemberS{Value: models.MetaSK()},
		},
		UpdateExpression: aws.String("ADD #version :one SET updated_at = :now"),
		ExpressionAttributeNames: map[string]string{
			"#version": "version",
		},
		ExpressionAttributeValues: values,
	}

	if meta == nil {
		update.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		update.ConditionExpression = aws.String("#version = :current")
		values[":current"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.Version, 10)}
	}

	return update
}

// dynamoRepo answers reads from the loaded snapshot and applies writes to it
// as they are buffered, so later reads in the same transaction see them.
type dynamoRepo struct {
	snap    *dynamoSnapshot
	loc     *time.Location
	table   string
	builder *database.TransactionBuilder
	touched map[string]bool
}

func (r *dynamoRepo) filter(match func(models.Entry) bool) []models.Entry {
	out := make([]models.Entry, 0)
	for _, e := range r.snap.entries {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (r *dynamoRepo) indexOf(entryId string) int {
	return slices.IndexFunc(r.snap.entries, func(e models.Entry) bool {
		return e.EntryId == entryId
	})
}

func (r *dynamoRepo) ListByStatus(ctx context.Context, status models.EntryStatus) ([]models.Entry, error) {
	entries := r.filter(func(e models.Entry) bool { return e.Status == status })
	slices.SortFunc(entries, compareEntries)
	return entries, nil
}

func (r *dynamoRepo) CountByStatus(ctx context.Context, status models.EntryStatus) (int, error) {
	return len(r.filter(func(e models.Entry) bool { return e.Status == status })), nil
}

func (r *dynamoRepo) FindByName(ctx context.Context, name string, status models.EntryStatus) (*models.Entry, error) {
	matches := r.filter(func(e models.Entry) bool { return e.Name == name && e.Status == status })
	if len(matches) == 0 {
		return nil, nil
	}
	slices.SortFunc(matches, compareEntries)
	return &matches[0], nil
}

func (r *dynamoRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return slices.ContainsFunc(r.snap.entries, func(e models.Entry) bool { return e.Name == name }), nil
}

func (r *dynamoRepo) FindEarliestWaiting(ctx context.Context) (*models.Entry, error) {
	waiting := r.filter(func(e models.Entry) bool { return e.Status == models.EntryStatusWaiting })
	if len(waiting) == 0 {
		return nil, nil
	}

	earliest := slices.MinFunc(waiting, func(a, b models.Entry) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.EntryId, b.EntryId)
	})
	return &earliest, nil
}

func (r *dynamoRepo) touch(entryId string) error {
	if r.builder == nil {
		return errReadOnly
	}
	if r.touched[entryId] {
		return fmt.Errorf("entry %s already written in this transaction", entryId)
	}
	r.touched[entryId] = true
	return nil
}

func (r *dynamoRepo) Create(ctx context.Context, entry *models.Entry) error {
	entry.EntryId = uuid.NewString()
	if err := r.touch(entry.EntryId); err != nil {
		return err
	}

	entry.PK = models.RosterPK()
	entry.SK = models.EntrySK(entry.EntryId)
	entry.RegisteredAt = entry.RegisteredAt.In(r.loc)

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := r.builder.AddPut(types.Put{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}); err != nil {
		return err
	}

	r.snap.entries = append(r.snap.entries, *entry)
	return nil
}

func (r *dynamoRepo) UpdatePlacement(ctx context.Context, entry *models.Entry) error {
	i := r.indexOf(entry.EntryId)
	if i < 0 {
		return fmt.Errorf("entry %s: %w", entry.EntryId, ErrConflict)
	}
	if err := r.touch(entry.EntryId); err != nil {
		return err
	}

	if err := r.builder.AddUpdate(types.Update{
		TableName:           aws.String(r.table),
		Key:                 entryKey(entry.EntryId),
		UpdateExpression:    aws.String("SET #status = :status, #position = :position"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#status":   "status",
			"#position": "position",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":   &types.AttributeValueMemberS{Value: string(entry.Status)},
			":position": &types.AttributeValueMemberN{Value: strconv.Itoa(entry.Position)},
		},
	}); err != nil {
		return err
	}

	r.snap.entries[i].Status = entry.Status
	r.snap.entries[i].Position = entry.Position
	return nil
}

func (r *dynamoRepo) Delete(ctx context.Context, entryId string) error {
	i := r.indexOf(entryId)
	if i < 0 {
		return fmt.Errorf("entry %s: %w", entryId, ErrConflict)
	}
	if err := r.touch(entryId); err != nil {
		return err
	}

	if err := r.builder.AddDelete(types.Delete{
		TableName:           aws.String(r.table),
		Key:                 entryKey(entryId),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}); err != nil {
		return err
	}

	r.snap.entries = slices.Delete(r.snap.entries, i, i+1)
	return nil
}

func (r *dynamoRepo) DeleteAll(ctx context.Context) (int, error) {
	ids := make([]string, 0, len(r.snap.entries))
	for _, e := range r.snap.entries {
		ids = append(ids, e.EntryId)
	}

	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func entryKey(entryId string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: models.RosterPK()},
		"SK": &types.AttributeValueMemberS{Value: models.EntrySK(entryId)},
	}
}

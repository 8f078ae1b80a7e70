package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// DynamoDB rejects TransactWriteItems calls above this size.
	TransactionItemLimit = 100

	tableWaitTimeout = 2 * time.Minute
)

// ErrTransactionConflict is returned when a condition check inside the
// transaction failed, usually because another writer got there first.
var ErrTransactionConflict = errors.New("transaction conflict")

type TransactionBuilder struct {
	items []types.TransactWriteItem
	limit int
}

func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		items: make([]types.TransactWriteItem, 0),
		limit: TransactionItemLimit,
	}
}

func (tb *TransactionBuilder) AddPut(item types.Put) error {
	if len(tb.items) >= tb.limit {
		return fmt.Errorf("transaction limit exceeded: %d items", tb.limit)
	}
	tb.items = append(tb.items, types.TransactWriteItem{
		Put: &item,
	})
	return nil
}

func (tb *TransactionBuilder) AddUpdate(item types.Update) error {
	if len(tb.items) >= tb.limit {
		return fmt.Errorf("transaction limit exceeded: %d items", tb.limit)
	}
	tb.items = append(tb.items, types.TransactWriteItem{
		Update: &item,
	})
	return nil
}

func (tb *TransactionBuilder) AddDelete(item types.Delete) error {
	if len(tb.items) >= tb.limit {
		return fmt.Errorf("transaction limit exceeded: %d items", tb.limit)
	}
	tb.items = append(tb.items, types.TransactWriteItem{
		Delete: &item,
	})
	return nil
}

func (tb *TransactionBuilder) Execute(ctx context.Context, client *dynamodb.Client) error {
	if len(tb.items) == 0 {
		return fmt.Errorf("no items in transaction")
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: tb.items,
	}

	_, err := client.TransactWriteItems(ctx, input)
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
		}
		return err
	}
	return nil
}

func (tb *TransactionBuilder) Count() int {
	return len(tb.items)
}

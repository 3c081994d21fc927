package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/finvault/wallet-engine/docstore"
)

// =============================================================================
// TRANSACTIONS - Staged writes committed with TransactWriteItems
// =============================================================================

// RunTransaction executes fn against a staging view and commits every write
// in a single TransactWriteItems call. Every item is read at most once per
// transaction; its Rev at that first read becomes the commit condition, so a
// concurrent writer landing anywhere between the read and the commit cancels
// the whole transaction and the caller retries on docstore.ErrConflict.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx docstore.Store) error) error {
	view := &txView{store: s, reads: map[refKey]readDoc{}, staged: map[refKey]*stagedDoc{}}
	if err := fn(view); err != nil {
		return err
	}
	return view.commit(ctx)
}

type refKey struct {
	collection string
	id         string
}

// readDoc is the state of an item at its first read inside the transaction.
type readDoc struct {
	rev  int64        // 0 means absent
	body docstore.Doc // nil means absent
}

type stagedDoc struct {
	body    docstore.Doc // nil means delete
	baseRev int64
}

type txView struct {
	store  *Store
	reads  map[refKey]readDoc
	staged map[refKey]*stagedDoc
}

// read returns the item's first-read state, fetching and recording it only
// once. Later mutations must validate and merge against this state, never
// against a fresher fetch, or the Rev condition would no longer cover the
// values the transaction's decisions were based on.
func (v *txView) read(ctx context.Context, k refKey) (readDoc, error) {
	if rd, ok := v.reads[k]; ok {
		return rd, nil
	}
	it, err := v.store.getItem(ctx, k.collection, k.id)
	if errors.Is(err, docstore.ErrNotFound) {
		rd := readDoc{}
		v.reads[k] = rd
		return rd, nil
	}
	if err != nil {
		return readDoc{}, err
	}
	rd := readDoc{rev: it.Rev, body: it.Body}
	v.reads[k] = rd
	return rd, nil
}

func (v *txView) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	k := refKey{collection, id}
	if st, ok := v.staged[k]; ok {
		if st.body == nil {
			return nil, docstore.ErrNotFound
		}
		return cloneDoc(st.body), nil
	}

	rd, err := v.read(ctx, k)
	if err != nil {
		return nil, err
	}
	if rd.body == nil {
		return nil, docstore.ErrNotFound
	}
	return cloneDoc(rd.body), nil
}

func (v *txView) Create(ctx context.Context, collection string, doc docstore.Doc) (string, error) {
	id := uuid.NewString()
	v.staged[refKey{collection, id}] = &stagedDoc{body: cloneDoc(doc), baseRev: 0}
	return id, nil
}

func (v *txView) Set(ctx context.Context, collection, id string, fields docstore.Doc) error {
	k := refKey{collection, id}

	var base docstore.Doc
	baseRev := int64(0)
	if st, ok := v.staged[k]; ok {
		if st.body != nil {
			base = st.body
		}
		baseRev = st.baseRev
	} else {
		rd, err := v.read(ctx, k)
		if err != nil {
			return err
		}
		if rd.body != nil {
			base = cloneDoc(rd.body)
		}
		baseRev = rd.rev
	}

	if base == nil {
		base = docstore.Doc{}
	}
	for key, val := range fields {
		base[key] = val
	}
	v.staged[k] = &stagedDoc{body: base, baseRev: baseRev}
	return nil
}

func (v *txView) Delete(ctx context.Context, collection, id string) error {
	k := refKey{collection, id}
	baseRev := int64(0)
	if st, ok := v.staged[k]; ok {
		baseRev = st.baseRev
	} else {
		rd, err := v.read(ctx, k)
		if err != nil {
			return err
		}
		baseRev = rd.rev
	}
	v.staged[k] = &stagedDoc{body: nil, baseRev: baseRev}
	return nil
}

// Query delegates to the base store. Staged writes are not overlaid; callers
// in this codebase query before the transaction and mutate by id inside it.
func (v *txView) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	return v.store.Query(ctx, collection, q)
}

func (v *txView) commit(ctx context.Context) error {
	if len(v.staged) == 0 {
		return nil
	}

	var actions []types.TransactWriteItem

	for k, st := range v.staged {
		if st.body == nil {
			key, err := itemKey(k.collection, k.id)
			if err != nil {
				return err
			}
			del := &types.Delete{TableName: aws.String(v.store.tableName), Key: key}
			if st.baseRev > 0 {
				del.ConditionExpression = aws.String("Rev = :rev")
				del.ExpressionAttributeValues = map[string]types.AttributeValue{
					":rev": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", st.baseRev)},
				}
			}
			actions = append(actions, types.TransactWriteItem{Delete: del})
			continue
		}

		put, condition, values, err := putRequest(v.store.tableName, k.collection, k.id, st.body, st.baseRev)
		if err != nil {
			return err
		}
		put.ConditionExpression = condition
		put.ExpressionAttributeValues = values
		actions = append(actions, types.TransactWriteItem{Put: put})
	}

	// Guard read-only items so the whole transaction is serializable.
	for k, rd := range v.reads {
		if _, written := v.staged[k]; written {
			continue
		}
		key, err := itemKey(k.collection, k.id)
		if err != nil {
			return err
		}
		check := &types.ConditionCheck{
			TableName: aws.String(v.store.tableName),
			Key:       key,
		}
		if rd.rev == 0 {
			check.ConditionExpression = aws.String("attribute_not_exists(ID)")
		} else {
			check.ConditionExpression = aws.String("Rev = :rev")
			check.ExpressionAttributeValues = map[string]types.AttributeValue{
				":rev": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rd.rev)},
			}
		}
		actions = append(actions, types.TransactWriteItem{ConditionCheck: check})
	}

	_, err := v.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: actions,
	})
	return mapConflict(err)
}

func cloneDoc(doc docstore.Doc) docstore.Doc {
	out := make(docstore.Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

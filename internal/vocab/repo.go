package vocab

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/abhisek/lexiz/internal/mastery"
	"github.com/abhisek/lexiz/internal/store"
)

// Repo persists items in the items collection, keyed by user and item and
// sorted by due date.
type Repo struct {
	rs store.RecordStore
}

// NewRepo creates a Repo over rs.
func NewRepo(rs store.RecordStore) *Repo {
	return &Repo{rs: rs}
}

func itemKey(userID, itemID string) string {
	return store.Key(userID, itemID)
}

// Get loads one item. A missing item yields an error wrapping
// apperr.ErrNotFound.
func (r *Repo) Get(ctx context.Context, userID, itemID string) (*Item, error) {
	rec, err := r.rs.Get(ctx, store.CollectionItems, itemKey(userID, itemID))
	if err != nil {
		return nil, err
	}
	return store.Decode[Item](*rec)
}

// Save validates and writes it, stamping UpdatedAt.
func (r *Repo) Save(ctx context.Context, it *Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = time.Now()
	}
	rec, err := store.Encode(itemKey(it.UserID, it.ItemID), it.UserID, store.DateKey(it.DueDate), it)
	if err != nil {
		return err
	}
	rec.UpdatedAt = it.UpdatedAt
	return r.rs.Put(ctx, store.CollectionItems, rec)
}

// All returns every item of a user ordered by due date, then item ID.
func (r *Repo) All(ctx context.Context, userID string) ([]*Item, error) {
	return r.query(ctx, store.Query{Owner: userID})
}

// Deck returns the items of one deck ordered by due date, then item ID.
func (r *Repo) Deck(ctx context.Context, userID, deckID string) ([]*Item, error) {
	return r.query(ctx, store.Query{
		Owner: userID,
		Match: func(rec store.Record) bool {
			it, err := store.Decode[Item](rec)
			return err == nil && it.DeckID == deckID
		},
	})
}

// Due returns the items due on or before asOf, optionally limited to one
// deck (empty deckID means every deck).
func (r *Repo) Due(ctx context.Context, userID, deckID string, asOf civil.Date) ([]*Item, error) {
	q := store.Query{Owner: userID, SortTo: store.DateKey(asOf)}
	if deckID != "" {
		q.Match = func(rec store.Record) bool {
			it, err := store.Decode[Item](rec)
			return err == nil && it.DeckID == deckID
		}
	}
	return r.query(ctx, q)
}

// DeckSummary counts one deck's items.
type DeckSummary struct {
	DeckID   string
	Total    int
	Due      int
	ByStatus map[mastery.Status]int
}

// Decks summarizes a user's items per deck.
func (r *Repo) Decks(ctx context.Context, userID string, asOf civil.Date) ([]DeckSummary, error) {
	items, err := r.All(ctx, userID)
	if err != nil {
		return nil, err
	}

	byDeck := make(map[string]*DeckSummary)
	for _, it := range items {
		d, ok := byDeck[it.DeckID]
		if !ok {
			d = &DeckSummary{DeckID: it.DeckID, ByStatus: make(map[mastery.Status]int)}
			byDeck[it.DeckID] = d
		}
		d.Total++
		if !asOf.Before(it.DueDate) {
			d.Due++
		}
		d.ByStatus[it.Status]++
	}

	out := make([]DeckSummary, 0, len(byDeck))
	for _, d := range byDeck {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeckID < out[j].DeckID })
	return out, nil
}

func (r *Repo) query(ctx context.Context, q store.Query) ([]*Item, error) {
	recs, err := r.rs.Query(ctx, store.CollectionItems, q)
	if err != nil {
		return nil, err
	}
	items, err := store.DecodeAll[Item](recs)
	if err != nil {
		return nil, err
	}
	SortByDue(items)
	return items, nil
}

// SortByDue orders items by due date, then item ID.
func SortByDue(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.DueDate != b.DueDate {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ItemID < b.ItemID
	})
}

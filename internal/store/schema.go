package store

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	recordsTable  = "records"
	eventsTable   = "events"
	sequenceTable = "event_sequence"

	colCollection = "collection"
	colKey        = "record_key"
	colOwner      = "owner"
	colSortKey    = "sort_key"
	colData       = "data"
	colUpdatedAt  = "updated_at"

	colSequence  = "seq"
	colKind      = "kind"
	colSessionID = "session_id"
	colCreatedAt = "created_at"
)

// textSize makes ent pick an unbounded text type on every dialect.
const textSize = 2147483647

var (
	recordsColumns = []*schema.Column{
		{Name: colCollection, Type: field.TypeString, Size: 64},
		{Name: colKey, Type: field.TypeString, Size: 255},
		{Name: colOwner, Type: field.TypeString, Size: 255, Default: ""},
		{Name: colSortKey, Type: field.TypeString, Size: 64, Default: ""},
		{Name: colData, Type: field.TypeString, Size: textSize},
		{Name: colUpdatedAt, Type: field.TypeInt64},
	}
	recordsTableDef = &schema.Table{
		Name:       recordsTable,
		Columns:    recordsColumns,
		PrimaryKey: []*schema.Column{recordsColumns[0], recordsColumns[1]},
		Indexes: []*schema.Index{
			{
				Name:    "record_collection_owner_sort_key",
				Columns: []*schema.Column{recordsColumns[0], recordsColumns[2], recordsColumns[3]},
			},
			{
				Name:    "record_collection_sort_key",
				Columns: []*schema.Column{recordsColumns[0], recordsColumns[3]},
			},
		},
	}

	eventsColumns = []*schema.Column{
		{Name: colSequence, Type: field.TypeInt64},
		{Name: colKind, Type: field.TypeString, Size: 64},
		{Name: colSessionID, Type: field.TypeString, Size: 64, Default: ""},
		{Name: colOwner, Type: field.TypeString, Size: 255, Default: ""},
		{Name: colData, Type: field.TypeString, Size: textSize},
		{Name: colCreatedAt, Type: field.TypeInt64},
	}
	eventsTableDef = &schema.Table{
		Name:       eventsTable,
		Columns:    eventsColumns,
		PrimaryKey: []*schema.Column{eventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "event_session_id_seq",
				Columns: []*schema.Column{eventsColumns[2], eventsColumns[0]},
			},
			{
				Name:    "event_kind_seq",
				Columns: []*schema.Column{eventsColumns[1], eventsColumns[0]},
			},
		},
	}

	sequenceColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt},
		{Name: "next_val", Type: field.TypeInt64, Default: 1},
	}
	sequenceTableDef = &schema.Table{
		Name:       sequenceTable,
		Columns:    sequenceColumns,
		PrimaryKey: []*schema.Column{sequenceColumns[0]},
	}

	tables = []*schema.Table{recordsTableDef, eventsTableDef, sequenceTableDef}
)

// migrate creates or updates every table the store needs.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}

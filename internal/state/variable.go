package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// VariableState reads variables by scope and pending variable documents.
type VariableState interface {
	GetVariable(ctx context.Context, scopeKey int64, name string) (*protocol.VariableRecord, bool, error)

	// Variables returns the variables of a scope ordered by name.
	Variables(ctx context.Context, scopeKey int64) ([]*protocol.VariableRecord, error)

	// PendingDocument returns the variable document update staged for a
	// scope while its owner decides whether to accept it.
	PendingDocument(ctx context.Context, scopeKey int64) (*protocol.VariableDocumentRecord, bool, error)
}

// MutableVariableState is the variable state the appliers write.
type MutableVariableState interface {
	VariableState
	SetVariable(ctx context.Context, variable *protocol.VariableRecord) error
	StoreVariableDocument(ctx context.Context, doc *protocol.VariableDocumentRecord) error
	RemoveVariableDocument(ctx context.Context, scopeKey int64) error
}

// DBVariableState stores variables by scope and name.
type DBVariableState struct {
	variables *db.ColumnFamily[*protocol.VariableRecord]
	documents *db.ColumnFamily[*protocol.VariableDocumentRecord]
}

// NewVariableState returns the variable partition of d.
func NewVariableState(d *db.DB) *DBVariableState {
	return &DBVariableState{
		variables: db.NewColumnFamily[*protocol.VariableRecord](d, cfVariables, "VARIABLES"),
		documents: db.NewColumnFamily[*protocol.VariableDocumentRecord](d, cfVariableDocuments, "VARIABLE_DOCUMENT_STATE_BY_SCOPE_KEY"),
	}
}

func (s *DBVariableState) GetVariable(ctx context.Context, scopeKey int64, name string) (*protocol.VariableRecord, bool, error) {
	return s.variables.Get(ctx, db.NewKey().Int64(scopeKey).Text(name))
}

func (s *DBVariableState) Variables(ctx context.Context, scopeKey int64) ([]*protocol.VariableRecord, error) {
	entries, err := s.variables.Scan(ctx, db.NewKey().Int64(scopeKey))
	if err != nil {
		return nil, err
	}
	out := make([]*protocol.VariableRecord, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

func (s *DBVariableState) PendingDocument(ctx context.Context, scopeKey int64) (*protocol.VariableDocumentRecord, bool, error) {
	return s.documents.Get(ctx, db.NewKey().Int64(scopeKey))
}

func (s *DBVariableState) SetVariable(ctx context.Context, variable *protocol.VariableRecord) error {
	stored := *variable
	return s.variables.Upsert(ctx, db.NewKey().Int64(variable.ScopeKey).Text(variable.Name), &stored)
}

func (s *DBVariableState) StoreVariableDocument(ctx context.Context, doc *protocol.VariableDocumentRecord) error {
	stored := *doc
	stored.Variables = doc.Variables.Clone()
	return s.documents.Upsert(ctx, db.NewKey().Int64(doc.ScopeKey), &stored)
}

func (s *DBVariableState) RemoveVariableDocument(ctx context.Context, scopeKey int64) error {
	return s.documents.DeleteIfExists(ctx, db.NewKey().Int64(scopeKey))
}

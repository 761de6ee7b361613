package graph

import (
	"context"

	"github.com/sharedcode/graphcore"
)

// Entity is the common surface of the proxy handles.
type Entity interface {
	ID() int64
	Kind() graphcore.EntityKind
}

// NodeProxy is a lightweight handle binding a node id to its manager. It
// holds no entity state: every use re-resolves through the entity cache, so
// the underlying node may be evicted and re-faulted at any time.
type NodeProxy struct {
	id int64
	m  *EntityManager
}

func (p NodeProxy) ID() int64 {
	return p.id
}

func (p NodeProxy) Kind() graphcore.EntityKind {
	return graphcore.KindNode
}

func (p NodeProxy) resource() graphcore.Resource {
	return graphcore.Resource{Kind: graphcore.KindNode, ID: p.id}
}

// Relationships pages in and returns the node's relationships merged with
// the current transaction's pending changes.
func (p NodeProxy) Relationships(ctx context.Context) ([]RelationshipView, error) {
	return p.m.Relationships(ctx, p)
}

// SetProperty adds or changes a property within the current transaction.
func (p NodeProxy) SetProperty(ctx context.Context, key string, value any) error {
	return p.m.SetNodeProperty(ctx, p, key, value)
}

// RemoveProperty removes a property within the current transaction.
func (p NodeProxy) RemoveProperty(ctx context.Context, key string) error {
	return p.m.RemoveNodeProperty(ctx, p, key)
}

// Property returns the transaction's pending view of a property.
func (p NodeProxy) Property(ctx context.Context, key string) (any, bool, error) {
	return p.m.NodeProperty(ctx, p, key)
}

// Delete tombstones the node within the current transaction.
func (p NodeProxy) Delete(ctx context.Context) error {
	_, err := p.m.DeleteNode(ctx, p)
	return err
}

// RelationshipProxy is the relationship-side handle.
type RelationshipProxy struct {
	id int64
	m  *EntityManager
}

func (p RelationshipProxy) ID() int64 {
	return p.id
}

func (p RelationshipProxy) Kind() graphcore.EntityKind {
	return graphcore.KindRelationship
}

func (p RelationshipProxy) resource() graphcore.Resource {
	return graphcore.Resource{Kind: graphcore.KindRelationship, ID: p.id}
}

// StartNode faults in the relationship and returns its start endpoint.
func (p RelationshipProxy) StartNode(ctx context.Context) (NodeProxy, error) {
	r, err := p.m.relForProxy(ctx, p.id)
	if err != nil {
		return NodeProxy{}, err
	}
	return NodeProxy{id: r.start, m: p.m}, nil
}

// EndNode faults in the relationship and returns its end endpoint.
func (p RelationshipProxy) EndNode(ctx context.Context) (NodeProxy, error) {
	r, err := p.m.relForProxy(ctx, p.id)
	if err != nil {
		return NodeProxy{}, err
	}
	return NodeProxy{id: r.end, m: p.m}, nil
}

// Type returns the relationship's type name.
func (p RelationshipProxy) Type(ctx context.Context) (string, error) {
	r, err := p.m.relForProxy(ctx, p.id)
	if err != nil {
		return "", err
	}
	name, _ := p.m.typeHolder.nameByID(r.typeID)
	return name, nil
}

// SetProperty adds or changes a property within the current transaction.
func (p RelationshipProxy) SetProperty(ctx context.Context, key string, value any) error {
	return p.m.SetRelationshipProperty(ctx, p, key, value)
}

// RemoveProperty removes a property within the current transaction.
func (p RelationshipProxy) RemoveProperty(ctx context.Context, key string) error {
	return p.m.RemoveRelationshipProperty(ctx, p, key)
}

// Property returns the transaction's pending view of a property.
func (p RelationshipProxy) Property(ctx context.Context, key string) (any, bool, error) {
	return p.m.RelationshipProperty(ctx, p, key)
}

// Delete tombstones the relationship within the current transaction.
func (p RelationshipProxy) Delete(ctx context.Context) error {
	_, err := p.m.DeleteRelationship(ctx, p)
	return err
}

// RelationshipView is one entry of a node's relationship listing: the
// relationship handle, its type name, and the direction it carries relative
// to the listed node. Self-loops appear once, tagged Both.
type RelationshipView struct {
	Relationship RelationshipProxy
	Type         string
	Direction    graphcore.Direction
}

package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerKeyWithAndWithoutProperty(t *testing.T) {
	assert.Equal(t, "UPDATE:PurchaseOrder:amount", Trigger{Type: TriggerUpdate, EntityType: "PurchaseOrder", Property: "amount"}.Key())
	assert.Equal(t, "UPDATE:PurchaseOrder", Trigger{Type: TriggerUpdate, EntityType: "PurchaseOrder"}.Key())
}

func TestPathString(t *testing.T) {
	assert.Equal(t, "this.status", Path{Segments: []string{"this", "status"}}.String())
	assert.Equal(t, "po", Path{Segments: []string{"po"}}.String())
}

func TestUpdateEventToTrigger(t *testing.T) {
	ev := UpdateEvent{EntityType: "Invoice", Property: "status"}
	assert.Equal(t, Trigger{Type: TriggerUpdate, EntityType: "Invoice", Property: "status"}, ev.ToTrigger())
}

func TestActionDefKey(t *testing.T) {
	a := ActionDef{EntityType: "Invoice", ActionName: "void"}
	entityType, actionName := a.Key()
	assert.Equal(t, "Invoice", entityType)
	assert.Equal(t, "void", actionName)
}

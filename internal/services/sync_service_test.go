package services

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/entities"
)

func entry(modSeq int64, objectID string, op entities.ChangeOp, props ...string) data.ChangeLogEntry {
	return data.ChangeLogEntry{ModSeq: modSeq, ObjectID: objectID, Op: op, UpdatedProperties: pq.StringArray(props)}
}

func Test_classifyWindow(t *testing.T) {
	testCases := []struct {
		name          string
		entries       []data.ChangeLogEntry
		wantCreated   []string
		wantUpdated   []string
		wantDestroyed []string
	}{
		{
			name:          "empty window",
			entries:       nil,
			wantCreated:   []string{},
			wantUpdated:   []string{},
			wantDestroyed: []string{},
		},
		{
			name: "single ops pass through",
			entries: []data.ChangeLogEntry{
				entry(1, "e1", entities.ChangeOpCreate),
				entry(2, "e2", entities.ChangeOpUpdate),
				entry(3, "e3", entities.ChangeOpDestroy),
			},
			wantCreated:   []string{"e1"},
			wantUpdated:   []string{"e2"},
			wantDestroyed: []string{"e3"},
		},
		{
			name: "create then update collapses to created",
			entries: []data.ChangeLogEntry{
				entry(1, "e1", entities.ChangeOpCreate),
				entry(2, "e1", entities.ChangeOpUpdate),
			},
			wantCreated:   []string{"e1"},
			wantUpdated:   []string{},
			wantDestroyed: []string{},
		},
		{
			name: "create then destroy collapses to destroyed",
			entries: []data.ChangeLogEntry{
				entry(1, "e1", entities.ChangeOpCreate),
				entry(2, "e1", entities.ChangeOpDestroy),
			},
			wantCreated:   []string{},
			wantUpdated:   []string{},
			wantDestroyed: []string{"e1"},
		},
		{
			name: "update then destroy collapses to destroyed",
			entries: []data.ChangeLogEntry{
				entry(1, "e1", entities.ChangeOpUpdate),
				entry(2, "e1", entities.ChangeOpDestroy),
			},
			wantCreated:   []string{},
			wantUpdated:   []string{},
			wantDestroyed: []string{"e1"},
		},
		{
			name: "destroy then create resurrects as updated",
			entries: []data.ChangeLogEntry{
				entry(1, "e1", entities.ChangeOpDestroy),
				entry(2, "e1", entities.ChangeOpCreate),
			},
			wantCreated:   []string{},
			wantUpdated:   []string{"e1"},
			wantDestroyed: []string{},
		},
		{
			name: "multiple updates collapse to one",
			entries: []data.ChangeLogEntry{
				entry(1, "e1", entities.ChangeOpUpdate),
				entry(2, "e1", entities.ChangeOpUpdate),
				entry(3, "e1", entities.ChangeOpUpdate),
			},
			wantCreated:   []string{},
			wantUpdated:   []string{"e1"},
			wantDestroyed: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			created, updated, destroyed, _ := classifyWindow(tc.entries, false)
			assert.Equal(t, tc.wantCreated, created)
			assert.Equal(t, tc.wantUpdated, updated)
			assert.Equal(t, tc.wantDestroyed, destroyed)
		})
	}
}

func Test_classifyWindow_updatedProperties(t *testing.T) {
	entries := []data.ChangeLogEntry{
		entry(1, "e1", entities.ChangeOpUpdate, "keywords"),
		entry(2, "e1", entities.ChangeOpUpdate, "mailboxIds", "keywords"),
		entry(3, "e2", entities.ChangeOpUpdate),
	}

	_, updated, _, props := classifyWindow(entries, true)
	assert.Equal(t, []string{"e1", "e2"}, updated)
	assert.Equal(t, map[string][]string{"e1": {"keywords", "mailboxIds"}}, props)
}

func Test_classifyWindow_propertiesOnlyForUpdated(t *testing.T) {
	entries := []data.ChangeLogEntry{
		entry(1, "e1", entities.ChangeOpCreate),
		entry(2, "e1", entities.ChangeOpUpdate, "keywords"),
	}

	created, updated, _, props := classifyWindow(entries, true)
	assert.Equal(t, []string{"e1"}, created)
	assert.Empty(t, updated)
	assert.Empty(t, props)
}

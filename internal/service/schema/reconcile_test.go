package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"crmsync/internal/domain"
)

func TestDecide_NoRemoteFile(t *testing.T) {
	d := Decide([]string{"id", "name"}, nil)

	assert.Equal(t, domain.PolicyCreate, d.Policy)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
}

func TestDecide_MatchingSignature(t *testing.T) {
	existing := &domain.RemoteFileHandle{
		TableName: "tickets",
		Signature: []string{"id", "status", "subject"},
	}

	d := Decide([]string{"id", "subject", "status"}, existing)

	assert.Equal(t, domain.PolicyAppend, d.Policy)
}

func TestDecide_ReorderedColumnsDoNotForceReplace(t *testing.T) {
	existing := &domain.RemoteFileHandle{Signature: []string{"id", "name", "city_id"}}

	d := Decide([]string{"city_id", "name", "id"}, existing)

	assert.Equal(t, domain.PolicyAppend, d.Policy)
}

func TestDecide_AddedColumn(t *testing.T) {
	existing := &domain.RemoteFileHandle{Signature: []string{"id", "subject"}}

	d := Decide([]string{"id", "subject", "priority"}, existing)

	assert.Equal(t, domain.PolicyReplace, d.Policy)
	assert.Equal(t, []string{"priority"}, d.Added)
	assert.Empty(t, d.Removed)
}

func TestDecide_RemovedColumn(t *testing.T) {
	existing := &domain.RemoteFileHandle{Signature: []string{"id", "subject", "legacy_flag"}}

	d := Decide([]string{"id", "subject"}, existing)

	assert.Equal(t, domain.PolicyReplace, d.Policy)
	assert.Empty(t, d.Added)
	assert.Equal(t, []string{"legacy_flag"}, d.Removed)
}

func TestDecide_AddedAndRemoved(t *testing.T) {
	existing := &domain.RemoteFileHandle{Signature: []string{"id", "old_name"}}

	d := Decide([]string{"id", "new_name"}, existing)

	assert.Equal(t, domain.PolicyReplace, d.Policy)
	assert.Equal(t, []string{"new_name"}, d.Added)
	assert.Equal(t, []string{"old_name"}, d.Removed)
}

func TestDecision_Warning(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
		want string
	}{
		{
			name: "append has no warning",
			d:    Decision{Policy: domain.PolicyAppend},
			want: "",
		},
		{
			name: "added only",
			d:    Decision{Policy: domain.PolicyReplace, Added: []string{"priority"}},
			want: "schema drift: added columns [priority]",
		},
		{
			name: "removed only",
			d:    Decision{Policy: domain.PolicyReplace, Removed: []string{"legacy_flag"}},
			want: "schema drift: removed columns [legacy_flag]",
		},
		{
			name: "both",
			d:    Decision{Policy: domain.PolicyReplace, Added: []string{"a", "b"}, Removed: []string{"c"}},
			want: "schema drift: added columns [a, b], removed columns [c]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Warning())
		})
	}
}

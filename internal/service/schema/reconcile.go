// Package schema implements the reconciler that decides, per table, how a
// proposed dataset is applied to the remote copy.
package schema

import (
	"fmt"
	"strings"

	"crmsync/internal/domain"
)

// Decision is the reconciler's verdict for one table. Added and Removed are
// populated only for REPLACE and name the signature delta relative to the
// existing remote file.
type Decision struct {
	Policy  domain.SyncPolicy
	Added   []string
	Removed []string
}

// Decide compares the proposed column signature against the existing remote
// file and picks the update policy:
//
//   - no existing file        → CREATE
//   - same column-name set    → APPEND
//   - any added/removed name  → REPLACE
//
// Equality is over column-name sets only: source-side column reordering
// never forces a destructive REPLACE. The NOOP outcome is decided by the
// sync engine after incremental filtering, not here.
func Decide(proposed []string, existing *domain.RemoteFileHandle) Decision {
	if existing == nil {
		return Decision{Policy: domain.PolicyCreate}
	}
	if domain.SignaturesEqual(proposed, existing.Signature) {
		return Decision{Policy: domain.PolicyAppend}
	}
	added, removed := diffSignatures(proposed, existing.Signature)
	return Decision{Policy: domain.PolicyReplace, Added: added, Removed: removed}
}

// Warning renders the REPLACE delta for the SyncResult. Empty for other
// policies.
func (d Decision) Warning() string {
	if d.Policy != domain.PolicyReplace {
		return ""
	}
	parts := make([]string, 0, 2)
	if len(d.Added) > 0 {
		parts = append(parts, fmt.Sprintf("added columns [%s]", strings.Join(d.Added, ", ")))
	}
	if len(d.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("removed columns [%s]", strings.Join(d.Removed, ", ")))
	}
	if len(parts) == 0 {
		return "schema drift detected"
	}
	return "schema drift: " + strings.Join(parts, ", ")
}

// diffSignatures returns the column names present only in proposed (added)
// and only in existing (removed), both sorted.
func diffSignatures(proposed, existing []string) (added, removed []string) {
	p := domain.NormalizeSignature(proposed)
	e := domain.NormalizeSignature(existing)

	inExisting := make(map[string]struct{}, len(e))
	for _, c := range e {
		inExisting[c] = struct{}{}
	}
	inProposed := make(map[string]struct{}, len(p))
	for _, c := range p {
		inProposed[c] = struct{}{}
	}

	for _, c := range p {
		if _, ok := inExisting[c]; !ok {
			added = append(added, c)
		}
	}
	for _, c := range e {
		if _, ok := inProposed[c]; !ok {
			removed = append(removed, c)
		}
	}
	return added, removed
}

package repositories

import (
	"strings"
	"testing"
)

func TestAuditListQueryOrder(t *testing.T) {
	asc := auditListQuery(false)
	if !strings.Contains(asc, "ORDER BY created_at ASC, id ASC") {
		t.Errorf("default query does not order oldest-first:\n%s", asc)
	}
	if strings.Contains(asc, "DESC") {
		t.Errorf("default query contains DESC:\n%s", asc)
	}

	desc := auditListQuery(true)
	if !strings.Contains(desc, "ORDER BY created_at DESC, id DESC") {
		t.Errorf("newest-first query does not order descending:\n%s", desc)
	}
}

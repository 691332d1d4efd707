package authz

import (
	"testing"

	"github.com/google/uuid"
)

var (
	repID   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	otherID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func rep() Principal {
	return Principal{ID: repID, Roles: []string{RoleRepresentative}}
}

func manager() Principal {
	return Principal{ID: otherID, Roles: []string{RoleManager}}
}

func repAndManager() Principal {
	return Principal{ID: repID, Roles: []string{RoleRepresentative, RoleManager}}
}

func TestCanRead(t *testing.T) {
	tests := []struct {
		name    string
		p       Principal
		ownerID *uuid.UUID
		kind    RecordKind
		want    bool
	}{
		{"manager reads any deal", manager(), &repID, KindDeal, true},
		{"manager reads unowned record", manager(), nil, KindContact, true},
		{"rep reads own contact", rep(), &repID, KindContact, true},
		{"rep cannot read foreign deal", rep(), &otherID, KindDeal, false},
		{"rep reads any company", rep(), &otherID, KindCompany, true},
		{"rep cannot read unowned activity", rep(), nil, KindActivity, false},
		{"no role reads nothing", Principal{ID: repID}, &repID, KindContact, false},
		{"manager role supersedes rep scoping", repAndManager(), &otherID, KindDeal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRead(tt.p, tt.ownerID, tt.kind); got != tt.want {
				t.Fatalf("CanRead = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanWrite(t *testing.T) {
	tests := []struct {
		name    string
		p       Principal
		ownerID *uuid.UUID
		want    bool
	}{
		{"manager writes anything", manager(), &repID, true},
		{"rep writes own record", rep(), &repID, true},
		{"rep creates new record", rep(), nil, true},
		{"rep cannot write foreign record", rep(), &otherID, false},
		{"no role writes nothing", Principal{ID: repID}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanWrite(tt.p, tt.ownerID); got != tt.want {
				t.Fatalf("CanWrite = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanDeleteIsOwnershipBlind(t *testing.T) {
	// The delete gate has no ownership parameter; a representative passes
	// even for records owned by someone else.
	if !CanDelete(rep()) {
		t.Fatal("representative should pass the coarse delete gate")
	}
	if !CanDelete(manager()) {
		t.Fatal("manager should pass the delete gate")
	}
	if CanDelete(Principal{ID: repID}) {
		t.Fatal("principal without a role should not pass the delete gate")
	}
}

func TestCanAccessMetrics(t *testing.T) {
	if !CanAccessMetrics(manager(), ScopeAll) {
		t.Fatal("manager should access all-scope metrics")
	}
	if !CanAccessMetrics(manager(), ScopePersonal) {
		t.Fatal("manager should access personal metrics")
	}
	if !CanAccessMetrics(rep(), ScopePersonal) {
		t.Fatal("representative should access personal metrics")
	}
	if CanAccessMetrics(rep(), ScopeAll) {
		t.Fatal("representative should not access all-scope metrics")
	}
}

func TestRecordFilter(t *testing.T) {
	if f := RecordFilter(manager(), KindDeal, "owner_id"); f != nil {
		t.Fatalf("manager filter should be nil, got %+v", f)
	}
	if f := RecordFilter(rep(), KindCompany, "owner_id"); f != nil {
		t.Fatalf("company-kind filter should be nil, got %+v", f)
	}

	f := RecordFilter(rep(), KindDeal, "owner_id")
	if f == nil {
		t.Fatal("representative deal filter should not be nil")
	}
	if f.Field != "owner_id" || f.Value != repID {
		t.Fatalf("unexpected filter %+v", f)
	}
}

package pgstore

import (
	"testing"

	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name     string
		filter   repository.Filter
		wantSQL  string
		wantArgs []any
	}{
		{name: "empty", filter: nil, wantSQL: "", wantArgs: nil},
		{
			name:     "single",
			filter:   repository.Filter{"customerId": "c1"},
			wantSQL:  "WHERE doc->>($1::text) = $2",
			wantArgs: []any{"customerId", "c1"},
		},
		{
			name:     "sorted keys",
			filter:   repository.Filter{"status": "SUCCESS", "orderId": "o1"},
			wantSQL:  "WHERE doc->>($1::text) = $2 AND doc->>($3::text) = $4",
			wantArgs: []any{"orderId", "o1", "status", "SUCCESS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs := whereClause(tt.filter)
			if gotSQL != tt.wantSQL {
				t.Errorf("sql = %q, want %q", gotSQL, tt.wantSQL)
			}
			if len(gotArgs) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", gotArgs, tt.wantArgs)
			}
			for i := range gotArgs {
				if gotArgs[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, gotArgs[i], tt.wantArgs[i])
				}
			}
		})
	}
}

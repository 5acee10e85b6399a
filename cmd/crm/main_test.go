package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"crm"},
			want: []string{"crm"},
		},
		{
			name: "customer ref first token",
			in:   []string{"crm", "customer-12"},
			want: []string{"crm", "customers", "show", "customer-12"},
		},
		{
			name: "offer ref after value flag",
			in:   []string{"crm", "--api-url", "http://localhost:9000/api", "offer-3"},
			want: []string{"crm", "--api-url", "http://localhost:9000/api", "offers", "show", "offer-3"},
		},
		{
			name: "task ref after equals flag",
			in:   []string{"crm", "--format=table", "task-7"},
			want: []string{"crm", "--format=table", "tasks", "show", "task-7"},
		},
		{
			name: "ref after bool flag",
			in:   []string{"crm", "--pretty", "Task-7"},
			want: []string{"crm", "--pretty", "tasks", "show", "Task-7"},
		},
		{
			name: "ref after double dash",
			in:   []string{"crm", "--", "offer-3"},
			want: []string{"crm", "--", "offers", "show", "offer-3"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"crm", "customers", "show", "customer-12"},
			want: []string{"crm", "customers", "show", "customer-12"},
		},
		{
			name: "non-numeric id not rewritten",
			in:   []string{"crm", "task-abc"},
			want: []string{"crm", "task-abc"},
		},
		{
			name: "unknown kind not rewritten",
			in:   []string{"crm", "user-1"},
			want: []string{"crm", "user-1"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectLookupArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectLookupArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}

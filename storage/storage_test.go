package storage

import "testing"

func TestSchemeOf(t *testing.T) {
	cases := []struct {
		name  string
		store Store
		want  string
	}{
		{"memory", NewMemory("bucket"), "mem://"},
		{"s3", NewS3("us-east-1", "bucket", "key", "secret"), "s3://"},
	}
	for _, tc := range cases {
		if got := SchemeOf(tc.store); got != tc.want {
			t.Errorf("%s: expected scheme %q, got %q", tc.name, tc.want, got)
		}
	}
}

package canonjson

import (
	"encoding/json"
	"testing"
)

func TestMarshal_SortsKeys(t *testing.T) {
	got, err := Marshal(json.RawMessage(`{"b":2,"a":1,"c":{"z":true,"y":null}}`))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"a":1,"b":2,"c":{"y":null,"z":true}}`
	if string(got) != want {
		t.Errorf("canonical form = %s, want %s", got, want)
	}
}

func TestMarshal_PreservesNumberText(t *testing.T) {
	got, err := Marshal(json.RawMessage(`{"n":1.50,"big":12345678901234567890}`))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"big":12345678901234567890,"n":1.50}`
	if string(got) != want {
		t.Errorf("canonical form = %s, want %s", got, want)
	}
}

func TestDigest_KeyOrderInsensitive(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"flat", `{"a":1,"b":"x"}`, `{"b":"x","a":1}`},
		{"nested", `{"p":{"q":[1,2],"r":true}}`, `{"p":{"r":true,"q":[1,2]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			da, err := Digest(json.RawMessage(tc.a))
			if err != nil {
				t.Fatalf("Digest a: %v", err)
			}
			db, err := Digest(json.RawMessage(tc.b))
			if err != nil {
				t.Fatalf("Digest b: %v", err)
			}
			if da != db {
				t.Errorf("digests differ for reordered keys: %s vs %s", da, db)
			}
		})
	}
}

func TestDigest_ValueChangeDetected(t *testing.T) {
	da, err := Digest(json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	db, err := Digest(json.RawMessage(`{"a":2}`))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if da == db {
		t.Error("digests equal for different values")
	}
}

func TestDigest_StructAndRawAgree(t *testing.T) {
	type payload struct {
		Permission string   `json:"permission"`
		Items      []string `json:"items"`
	}
	fromStruct, err := Digest(payload{Permission: "decision.create", Items: []string{"a"}})
	if err != nil {
		t.Fatalf("Digest struct: %v", err)
	}
	fromRaw, err := Digest(json.RawMessage(`{"items":["a"],"permission":"decision.create"}`))
	if err != nil {
		t.Fatalf("Digest raw: %v", err)
	}
	if fromStruct != fromRaw {
		t.Errorf("struct and raw digests differ: %s vs %s", fromStruct, fromRaw)
	}
}
